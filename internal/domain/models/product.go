package models

// Product: позиция каталога одного из магазинов (mlbb, hok, telegram, facebook ...)
type Product struct {
	ID    int64  `json:"id"`
	Shop  string `json:"shop"`
	Name  string `json:"name"`  // уникально в рамках магазина
	Price int64  `json:"price"` // цена в Ks
}
