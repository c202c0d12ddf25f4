// Command ntctl inspects and changes the entries of a NetworkTables
// server. The entry commands connect as a regular client over TCP or
// WebSocket, admin-entries goes through the admin RPC service.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/su225/networktables/node/client"
	"github.com/su225/networktables/node/entry"
	"github.com/su225/networktables/node/rpc"
	"github.com/tidwall/gjson"
)

const usage = `usage: ntctl [flags] <command> [arguments]

commands:
  entries [prefix]                 list entries in name order
  create <name> <type> <value>     create an entry, value is JSON
  update <name> <value>            set a new value, value is JSON
  delete <name>                    delete an entry
  clear                            delete every entry
  call <name> <parameter>          call a remote procedure
  admin-entries [prefix]           list entries through the admin RPC service

flags:
`

type options struct {
	url        string
	name       string
	adminAddr  string
	timeout    time.Duration
	persistent bool
}

func main() {
	logrus.SetLevel(logrus.WarnLevel)
	if runErr := run(os.Args[1:], os.Stdout); runErr != nil {
		fmt.Fprintln(os.Stderr, "ntctl:", runErr)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("ntctl", flag.ContinueOnError)
	opts := &options{}
	flags.StringVar(&opts.url, "url", "ws://127.0.0.1:1735",
		"Server to connect to: tcp://host:port, ws://host:port or host:port")
	flags.StringVar(&opts.name, "name", "ntctl", "Client name sent in the handshake")
	flags.StringVar(&opts.adminAddr, "admin", "127.0.0.1:6667", "Address of the admin RPC service")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Second, "Timeout of the whole command")
	flags.BoolVar(&opts.persistent, "persistent", false, "Create the entry as persistent")
	flags.Usage = func() {
		fmt.Fprint(flags.Output(), usage)
		flags.PrintDefaults()
	}
	if parseErr := flags.Parse(args); parseErr != nil {
		return parseErr
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return errors.New("no command given")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()
	command, commandArgs := flags.Arg(0), flags.Args()[1:]
	switch command {
	case "admin-entries":
		return adminEntries(opts, commandArgs, out)
	case "entries", "create", "update", "delete", "clear", "call":
	default:
		return errors.Errorf("unknown command %q", command)
	}

	c, connErr := client.Connect(ctx, opts.url, opts.name)
	if connErr != nil {
		return connErr
	}
	defer c.Close()

	switch command {
	case "entries":
		return listEntries(c, commandArgs, out)
	case "create":
		return createEntry(ctx, c, opts, commandArgs, out)
	case "update":
		return updateEntry(c, commandArgs)
	case "delete":
		return deleteEntry(c, commandArgs)
	case "clear":
		return c.ClearEntries()
	default:
		return callProcedure(ctx, c, commandArgs, out)
	}
}

func listEntries(c *client.RealClient, args []string, out io.Writer) error {
	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}
	entries := make([]entry.Entry, 0)
	for id, data := range c.Entries() {
		if strings.HasPrefix(data.Name, prefix) {
			entries = append(entries, entry.Entry{ID: id, EntryData: data})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	printEntries(entries, out)
	return nil
}

func createEntry(ctx context.Context, c *client.RealClient, opts *options, args []string, out io.Writer) error {
	if len(args) != 3 {
		return errors.New("create needs <name> <type> <value>")
	}
	entryType, typeErr := entry.ParseEntryType(args[1])
	if typeErr != nil {
		return typeErr
	}
	value, valueErr := parseValue(entryType, args[2])
	if valueErr != nil {
		return valueErr
	}
	var flags uint8
	if opts.persistent {
		flags |= entry.FlagPersistent
	}
	id, createErr := c.CreateEntry(ctx, entry.NewEntryData(args[0], flags, value))
	if createErr != nil {
		return createErr
	}
	fmt.Fprintf(out, "%d\n", id)
	return nil
}

func updateEntry(c *client.RealClient, args []string) error {
	if len(args) != 2 {
		return errors.New("update needs <name> <value>")
	}
	id, current, lookupErr := lookup(c, args[0])
	if lookupErr != nil {
		return lookupErr
	}
	value, valueErr := parseValue(current.EntryType(), args[1])
	if valueErr != nil {
		return valueErr
	}
	return c.UpdateEntry(id, value)
}

func deleteEntry(c *client.RealClient, args []string) error {
	if len(args) != 1 {
		return errors.New("delete needs <name>")
	}
	id, _, lookupErr := lookup(c, args[0])
	if lookupErr != nil {
		return lookupErr
	}
	return c.DeleteEntry(id)
}

func callProcedure(ctx context.Context, c *client.RealClient, args []string, out io.Writer) error {
	if len(args) != 2 {
		return errors.New("call needs <name> <parameter>")
	}
	id, _, lookupErr := lookup(c, args[0])
	if lookupErr != nil {
		return lookupErr
	}
	result, callErr := c.CallRPC(ctx, id, []byte(args[1]))
	if callErr != nil {
		return callErr
	}
	fmt.Fprintf(out, "%s\n", result)
	return nil
}

func adminEntries(opts *options, args []string, out io.Writer) error {
	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}
	adminClient := rpc.NewRealAdminRPCClient(opts.adminAddr, 1, uint64(opts.timeout/time.Millisecond))
	if startErr := adminClient.Start(); startErr != nil {
		return startErr
	}
	defer adminClient.Destroy()
	entries, listErr := adminClient.ListEntries(prefix)
	if listErr != nil {
		return listErr
	}
	printEntries(entries, out)
	return nil
}

func lookup(c *client.RealClient, name string) (uint16, entry.EntryData, error) {
	id, found := c.LookupEntry(name)
	if !found {
		return 0, entry.EntryData{}, &entry.EntryNotFoundError{Name: name}
	}
	data, dataErr := c.GetEntry(id).Data()
	return id, data, dataErr
}

func parseValue(t entry.EntryType, raw string) (entry.EntryValue, error) {
	if !gjson.Valid(raw) {
		return entry.EntryValue{}, errors.Errorf("value %q is not valid JSON", raw)
	}
	return entry.ValueFromJSON(t, gjson.Parse(raw))
}

func printEntries(entries []entry.Entry, out io.Writer) {
	for _, e := range entries {
		persistent := ""
		if e.IsPersistent() {
			persistent = " persistent"
		}
		fmt.Fprintf(out, "%d\t%s\t%s\t%s%s\n", e.ID, e.Name, e.EntryType(), e.Value, persistent)
	}
}
