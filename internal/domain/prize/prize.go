// Package prize описывает фиксированный набор призов колеса удачи,
// взвешенный розыгрыш и геометрию колеса.
package prize

import (
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode"
)

// Kind определяет, как обрабатывается выигранный приз
type Kind int

const (
	KindNothing Kind = iota // "Good Luck"
	KindCredit              // зачисление Ks на баланс
	KindGame                // игровая валюта, нужна форма с game id / server id
	KindContact             // физический приз, выдается через администратора
)

// Prize: сектор колеса
type Prize struct {
	Label  string
	Kind   Kind
	Credit int64
	Weight int
}

// RequiresClaim сообщает, нужна ли ручная выдача приза
func (p Prize) RequiresClaim() bool {
	return p.Kind == KindGame || p.Kind == KindContact
}

// defaultTable: порядок совпадает с порядком секторов на колесе
var defaultTable = []Prize{
	{Label: "Good Luck", Kind: KindNothing, Weight: 3000},
	{Label: "Ks-10", Kind: KindCredit, Credit: 10, Weight: 2500},
	{Label: "Ks-30", Kind: KindCredit, Credit: 30, Weight: 1800},
	{Label: "Ks-100", Kind: KindCredit, Credit: 100, Weight: 1200},
	{Label: "Ks-500", Kind: KindCredit, Credit: 500, Weight: 700},
	{Label: "Ks-1000", Kind: KindCredit, Credit: 1000, Weight: 400},
	{Label: "Ks-3000", Kind: KindCredit, Credit: 3000, Weight: 200},
	{Label: "Ks-10000", Kind: KindCredit, Credit: 10000, Weight: 50},
	{Label: "Diamond 10,000", Kind: KindGame, Weight: 20},
	{Label: "UC 1000", Kind: KindGame, Weight: 20},
	{Label: "iPhone 16", Kind: KindContact, Weight: 5},
}

// Table возвращает копию таблицы призов
func Table() []Prize {
	out := make([]Prize, len(defaultTable))
	copy(out, defaultTable)
	return out
}

// Labels возвращает подписи секторов по порядку
func Labels() []string {
	labels := make([]string, len(defaultTable))
	for i, p := range defaultTable {
		labels[i] = p.Label
	}
	return labels
}

// Normalize приводит подпись к виду для сравнения:
// нижний регистр, без пробелов и пунктуации.
func Normalize(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Lookup ищет приз по подписи без учета пунктуации и пробелов
func Lookup(label string) (Prize, int, bool) {
	key := Normalize(label)
	for i, p := range defaultTable {
		if Normalize(p.Label) == key {
			return p, i, true
		}
	}
	return Prize{}, -1, false
}

// Drawer выполняет взвешенный розыгрыш. Безопасен для конкурентного использования.
type Drawer struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	table []Prize
	total int
}

// NewDrawer создает розыгрыш по стандартной таблице
func NewDrawer(src rand.Source) *Drawer {
	return NewDrawerWithTable(src, defaultTable)
}

// NewDrawerWithTable создает розыгрыш по произвольной таблице.
// Призы с неположительным весом никогда не выпадают.
func NewDrawerWithTable(src rand.Source, table []Prize) *Drawer {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	total := 0
	for _, p := range table {
		if p.Weight > 0 {
			total += p.Weight
		}
	}
	return &Drawer{rnd: rand.New(src), table: table, total: total}
}

// Draw возвращает выпавший приз и его индекс в таблице
func (d *Drawer) Draw() (Prize, int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.total <= 0 {
		return d.table[0], 0
	}
	pick := d.rnd.Intn(d.total) + 1
	acc := 0
	for i, p := range d.table {
		if p.Weight <= 0 {
			continue
		}
		acc += p.Weight
		if pick <= acc {
			return p, i
		}
	}
	// недостижимо при total > 0
	return d.table[0], 0
}

// Turns возвращает случайное число полных оборотов колеса (3..5)
func (d *Drawer) Turns() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return MinTurns + d.rnd.Intn(MaxTurns-MinTurns+1)
}
