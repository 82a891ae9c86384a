// shopctl это консольный клиент API магазина для входа через Telegram, колеса и админки.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/linemk/topup-shop/internal/client"
)

const usage = `usage: shopctl [-addr URL] <command> [args]

commands:
  tg-login                 start Telegram login and wait for confirmation
  state <email>            gift wheel state
  spin <email>             spin the wheel
  wait-spin <email>        wait for the free spin and use it
  admin <users|orders|transactions|wallets|draws> [-limit N] [-offset N]
  deposit <userID> <amount> [remark]

environment: SHOP_ADDR, SHOP_TOKEN, SHOP_ADMIN_USER, SHOP_ADMIN_PASSWORD (.env is read if present)
`

func main() {
	// .env необязателен
	_ = godotenv.Load()

	addr := flag.String("addr", envOr("SHOP_ADDR", "http://localhost:8080"), "API base URL")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(*addr, client.WithToken(os.Getenv("SHOP_TOKEN")))
	if err := run(ctx, c, flag.Arg(0), flag.Args()[1:]); err != nil {
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
}

func run(ctx context.Context, c *client.Client, cmd string, args []string) error {
	switch cmd {
	case "tg-login":
		start, err := c.StartTelegramLogin(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("open %s and press Confirm (code %s, valid %ds)\n", start.BotURL, start.Code, start.ExpiresIn)
		st, err := c.WaitTelegramLogin(ctx, start.Code)
		if err != nil {
			return err
		}
		fmt.Printf("signed in as %s\nSHOP_TOKEN=%s\n", st.User.Email, st.Token)
		return nil
	case "state":
		email, err := arg(args, 0, "email")
		if err != nil {
			return err
		}
		state, err := c.GiftState(ctx, email)
		if err != nil {
			return err
		}
		return printJSON(state)
	case "spin":
		email, err := arg(args, 0, "email")
		if err != nil {
			return err
		}
		res, err := c.Spin(ctx, email)
		if err != nil {
			return err
		}
		return printJSON(res)
	case "wait-spin":
		email, err := arg(args, 0, "email")
		if err != nil {
			return err
		}
		if _, err := c.WaitFreeSpin(ctx, email); err != nil {
			return err
		}
		res, err := c.Spin(ctx, email)
		if err != nil {
			return err
		}
		return printJSON(res)
	case "admin":
		return runAdmin(ctx, c, args)
	case "deposit":
		return runDeposit(ctx, c, args)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runAdmin(ctx context.Context, c *client.Client, args []string) error {
	what, err := arg(args, 0, "list name")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	limit := fs.Int("limit", 100, "page size")
	offset := fs.Int("offset", 0, "page offset")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if err := adminLogin(ctx, c); err != nil {
		return err
	}

	var out interface{}
	switch what {
	case "users":
		out, err = c.AdminUsers(ctx, *limit, *offset)
	case "orders":
		out, err = c.AdminOrders(ctx, *limit, *offset)
	case "transactions":
		out, err = c.AdminTransactions(ctx, *limit, *offset)
	case "wallets":
		out, err = c.AdminWallets(ctx, *limit, *offset)
	case "draws":
		out, err = c.AdminDraws(ctx, *limit, *offset)
	default:
		return fmt.Errorf("unknown list %q", what)
	}
	if err != nil {
		return err
	}
	return printJSON(out)
}

func runDeposit(ctx context.Context, c *client.Client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: deposit <userID> <amount> [remark]")
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	remark := ""
	if len(args) > 2 {
		remark = args[2]
	}
	if err := adminLogin(ctx, c); err != nil {
		return err
	}
	wallet, err := c.AdminDeposit(ctx, userID, amount, remark)
	if err != nil {
		return err
	}
	return printJSON(wallet)
}

// adminLogin входит под админом, если токен не передан через SHOP_TOKEN
func adminLogin(ctx context.Context, c *client.Client) error {
	if c.Token() != "" {
		return nil
	}
	user, pass := os.Getenv("SHOP_ADMIN_USER"), os.Getenv("SHOP_ADMIN_PASSWORD")
	if pass == "" {
		return fmt.Errorf("SHOP_TOKEN or SHOP_ADMIN_PASSWORD is required")
	}
	if user == "" {
		user = "admin"
	}
	return c.AdminLogin(ctx, user, pass)
}

func arg(args []string, i int, name string) (string, error) {
	if len(args) <= i {
		return "", fmt.Errorf("missing %s", name)
	}
	return args[i], nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
