package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tokengate/token-allowlist-backend/api/clients"
	"github.com/tokengate/token-allowlist-backend/cmd/flags"
	"github.com/tokengate/token-allowlist-backend/interfaces"
)

var allocationFlag = &cli.Uint64Flag{
	Name:  "allocation",
	Value: 0,
	Usage: "token allocation granted to the member",
}

var capacityFlag = &cli.Uint64Flag{
	Name:  "capacity",
	Value: 50,
	Usage: "member capacity of the new shard, 1 to 50",
}

var destinationFlag = &cli.StringFlag{
	Name:     "destination",
	Required: true,
	Usage:    "identity receiving the closed account's balance. 64-char hex string",
}

func main() {
	app := &cli.App{
		Name:  "allowlist-client",
		Usage: "Operate a token allowlist registry over its HTTP API",
		Flags: []cli.Flag{
			flags.ServerAddrFlag,
			flags.DiscoverSrvFlag,
			flags.RegistryFlag,
		},
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "List a member with a token allocation",
				ArgsUsage: "<member-hex>",
				Flags:     []cli.Flag{allocationFlag},
				Action: func(cCtx *cli.Context) error {
					c, member, err := clientAndMember(cCtx)
					if err != nil {
						return err
					}
					txid, err := c.AddMember(cCtx.Context, member, cCtx.Uint64(allocationFlag.Name))
					if err != nil {
						return err
					}
					fmt.Println(txid)
					return nil
				},
			},
			{
				Name:      "remove",
				Usage:     "Delist a member",
				ArgsUsage: "<member-hex>",
				Action: func(cCtx *cli.Context) error {
					c, member, err := clientAndMember(cCtx)
					if err != nil {
						return err
					}
					txid, err := c.RemoveMember(cCtx.Context, member)
					if err != nil {
						return err
					}
					fmt.Println(txid)
					return nil
				},
			},
			{
				Name:      "member",
				Usage:     "Query the listing status of a member",
				ArgsUsage: "<member-hex>",
				Action: func(cCtx *cli.Context) error {
					c, member, err := clientAndMember(cCtx)
					if err != nil {
						return err
					}
					status, err := c.MemberStatus(cCtx.Context, member)
					if err != nil {
						return err
					}
					return printJSON(status)
				},
			},
			{
				Name:  "members",
				Usage: "Dump every listed member",
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx)
					if err != nil {
						return err
					}
					members, err := c.ListMembers(cCtx.Context)
					if err != nil {
						return err
					}
					return printJSON(members)
				},
			},
			{
				Name:  "status",
				Usage: "Describe the registry and its shards",
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx)
					if err != nil {
						return err
					}
					info, err := c.RegistryInfo(cCtx.Context)
					if err != nil {
						return err
					}
					return printJSON(info)
				},
			},
			{
				Name:  "shard",
				Usage: "Create and register an additional shard",
				Flags: []cli.Flag{capacityFlag},
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx)
					if err != nil {
						return err
					}
					shard, err := c.CreateShard(cCtx.Context, cCtx.Uint64(capacityFlag.Name))
					if err != nil {
						return err
					}
					fmt.Println(shard)
					return nil
				},
			},
			{
				Name:      "close",
				Usage:     "Close a shard or the registry map account",
				ArgsUsage: "<target-hex>",
				Flags:     []cli.Flag{destinationFlag},
				Action: func(cCtx *cli.Context) error {
					c, target, err := clientAndMember(cCtx)
					if err != nil {
						return err
					}
					destination, err := interfaces.NewIdentityFromHex(cCtx.String(destinationFlag.Name))
					if err != nil {
						return fmt.Errorf("could not parse destination identity: %w", err)
					}
					txid, err := c.Close(cCtx.Context, target, destination)
					if err != nil {
						return err
					}
					fmt.Println(txid)
					return nil
				},
			},
			{
				Name:  "snapshot",
				Usage: "Publish a ledger snapshot to storage",
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx)
					if err != nil {
						return err
					}
					resp, err := c.Snapshot(cCtx.Context)
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// newClient builds the API client, resolving the server address from DNS
// SRV when discovery is requested.
func newClient(cCtx *cli.Context) (*clients.AdminClient, error) {
	registryID, err := interfaces.NewIdentityFromHex(cCtx.String(flags.RegistryFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("could not parse registry identity: %w", err)
	}

	serverAddr := cCtx.String(flags.ServerAddrFlag.Name)
	if srvName := cCtx.String(flags.DiscoverSrvFlag.Name); srvName != "" {
		addr, err := clients.DiscoverServerAddr(srvName, "")
		if err != nil {
			return nil, err
		}
		serverAddr = "http://" + addr
	}

	return clients.NewAdminClient(serverAddr, registryID), nil
}

func clientAndMember(cCtx *cli.Context) (*clients.AdminClient, interfaces.Identity, error) {
	c, err := newClient(cCtx)
	if err != nil {
		return nil, interfaces.Identity{}, err
	}

	if cCtx.Args().Len() != 1 {
		return nil, interfaces.Identity{}, fmt.Errorf("expected exactly one identity argument")
	}
	id, err := interfaces.NewIdentityFromHex(cCtx.Args().First())
	if err != nil {
		return nil, interfaces.Identity{}, fmt.Errorf("could not parse identity: %w", err)
	}
	return c, id, nil
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
