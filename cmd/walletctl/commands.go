package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/table"
	"github.com/urfave/cli"
)

var versionCommand = cli.Command{
	Name:  "version",
	Usage: "report the protocol version walletd implements",
	Action: func(ctx *cli.Context) error {
		var out struct {
			Version string `json:"version"`
		}
		if err := call(ctx, "version", nil, &out); err != nil {
			return err
		}
		fmt.Println(out.Version)
		return nil
	},
}

type wireAccount struct {
	AccountID           string `json:"account_id"`
	Name                string `json:"name"`
	SpendPublic         string `json:"spend_public_key"`
	NextSubaddressIndex uint64 `json:"next_subaddress_index"`
	ViewOnly            bool   `json:"view_only"`
}

var createAccountCommand = cli.Command{
	Name:      "createaccount",
	Usage:     "create a new account",
	ArgsUsage: "name",
	Action: func(ctx *cli.Context) error {
		params := struct {
			Name string `json:"name"`
		}{Name: ctx.Args().First()}

		var out struct {
			Account  wireAccount `json:"account"`
			Mnemonic string      `json:"mnemonic"`
		}
		if err := call(ctx, "create_account", params, &out); err != nil {
			return err
		}
		fmt.Printf("account_id: %s\nmnemonic:   %s\n", out.Account.AccountID, out.Mnemonic)
		return nil
	},
}

var listAccountsCommand = cli.Command{
	Name:  "listaccounts",
	Usage: "list every known account",
	Action: func(ctx *cli.Context) error {
		var accounts []wireAccount
		if err := call(ctx, "get_all_accounts", nil, &accounts); err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"account id", "name", "next subaddress", "view only"})
		for _, acct := range accounts {
			t.AppendRow(table.Row{acct.AccountID, acct.Name, acct.NextSubaddressIndex, acct.ViewOnly})
		}
		t.Render()
		return nil
	},
}

var accountStatusCommand = cli.Command{
	Name:      "accountstatus",
	Usage:     "show sync status and per-token balance for an account",
	ArgsUsage: "account_id",
	Action: func(ctx *cli.Context) error {
		params := struct {
			AccountID string `json:"account_id"`
		}{AccountID: ctx.Args().First()}

		var out struct {
			Account  wireAccount `json:"account"`
			Balances map[string]struct {
				Unspent string `json:"unspent"`
				Pending string `json:"pending"`
			} `json:"balance_per_token"`
		}
		if err := call(ctx, "get_account_status", params, &out); err != nil {
			return err
		}

		fmt.Printf("account:          %s\nnext subaddress:  %d\n", out.Account.AccountID, out.Account.NextSubaddressIndex)
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"token id", "unspent", "pending"})
		for token, bal := range out.Balances {
			t.AppendRow(table.Row{token, bal.Unspent, bal.Pending})
		}
		t.Render()
		return nil
	},
}

var assignAddressCommand = cli.Command{
	Name:      "assignaddress",
	Usage:     "assign the next subaddress for an account",
	ArgsUsage: "account_id [metadata]",
	Action: func(ctx *cli.Context) error {
		params := struct {
			AccountID string `json:"account_id"`
			Metadata  string `json:"metadata"`
		}{AccountID: ctx.Args().Get(0), Metadata: ctx.Args().Get(1)}

		var out struct {
			PublicAddressB58 string `json:"public_address_b58"`
		}
		if err := call(ctx, "assign_address_for_account", params, &out); err != nil {
			return err
		}
		fmt.Println(out.PublicAddressB58)
		return nil
	},
}

var buildAndSubmitCommand = cli.Command{
	Name:      "send",
	Usage:     "build and submit a transaction",
	ArgsUsage: "account_id recipient_b58 value [token_id]",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "comment", Usage: "transaction log comment"},
	},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() < 3 {
			return cli.ShowCommandHelp(ctx, "send")
		}
		var tokenID uint64
		if ctx.NArg() > 3 {
			fmt.Sscanf(ctx.Args().Get(3), "%d", &tokenID)
		}

		params := struct {
			AccountID           string      `json:"account_id"`
			AddressesAndAmounts [][2]string `json:"addresses_and_amounts"`
			TokenID             uint64      `json:"token_id,omitempty"`
			Comment             string      `json:"comment,omitempty"`
		}{
			AccountID:           ctx.Args().Get(0),
			AddressesAndAmounts: [][2]string{{ctx.Args().Get(1), ctx.Args().Get(2)}},
			TokenID:             tokenID,
			Comment:             ctx.String("comment"),
		}

		var out struct {
			LogID string `json:"transaction_log_id"`
		}
		if err := call(ctx, "build_and_submit_transaction", params, &out); err != nil {
			return err
		}
		fmt.Println(out.LogID)
		return nil
	},
}

var networkStatusCommand = cli.Command{
	Name:  "networkstatus",
	Usage: "show local and network chain height",
	Action: func(ctx *cli.Context) error {
		var out struct {
			LocalBlockIndex    uint64 `json:"local_block_index"`
			NetworkBlockIndex  uint64 `json:"network_block_index"`
			MaxTombstoneBlocks uint64 `json:"max_tombstone_blocks"`
		}
		if err := call(ctx, "get_network_status", nil, &out); err != nil {
			return err
		}
		fmt.Printf("local:   %d\nnetwork: %d\n", out.LocalBlockIndex, out.NetworkBlockIndex)
		return nil
	},
}

var giftCodeCommands = cli.Command{
	Name:  "giftcode",
	Usage: "build, check, and claim gift codes",
	Subcommands: []cli.Command{
		{
			Name:      "build",
			ArgsUsage: "account_id value [memo]",
			Action: func(ctx *cli.Context) error {
				params := struct {
					AccountID string `json:"account_id"`
					Value     string `json:"value"`
					Memo      string `json:"memo"`
				}{
					AccountID: ctx.Args().Get(0),
					Value:     ctx.Args().Get(1),
					Memo:      ctx.Args().Get(2),
				}
				var out struct {
					GiftCodeB58 string `json:"gift_code_b58"`
				}
				if err := call(ctx, "build_gift_code", params, &out); err != nil {
					return err
				}
				fmt.Println(out.GiftCodeB58)
				return nil
			},
		},
		{
			Name:      "status",
			ArgsUsage: "gift_code_b58",
			Action: func(ctx *cli.Context) error {
				params := struct {
					GiftCodeB58 string `json:"gift_code_b58"`
				}{GiftCodeB58: ctx.Args().First()}
				var out struct {
					Status string `json:"status"`
				}
				if err := call(ctx, "check_gift_code_status", params, &out); err != nil {
					return err
				}
				fmt.Println(out.Status)
				return nil
			},
		},
		{
			Name:      "claim",
			ArgsUsage: "gift_code_b58 account_id",
			Action: func(ctx *cli.Context) error {
				params := struct {
					GiftCodeB58 string `json:"gift_code_b58"`
					AccountID   string `json:"account_id"`
				}{GiftCodeB58: ctx.Args().Get(0), AccountID: ctx.Args().Get(1)}
				if err := call(ctx, "claim_gift_code", params, nil); err != nil {
					return err
				}
				fmt.Println("claimed")
				return nil
			},
		},
	},
}
