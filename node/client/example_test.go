package client_test

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/su225/networktables/node/client"
	"github.com/su225/networktables/node/entry"
	"github.com/su225/networktables/node/server"
)

func startExampleServer() (*server.RealServer, string) {
	srv := server.NewRealServer("127.0.0.1:0", "example-server", 0, 0, 0, nil)
	if err := srv.Start(); err != nil {
		panic(err)
	}
	addr, err := srv.Addr()
	if err != nil {
		panic(err)
	}
	return srv, addr
}

// Connecting and listing the entries the server already holds
func ExampleConnect() {
	srv, addr := startExampleServer()
	defer srv.Destroy()
	srv.CreateEntry(entry.NewEntryData("/SmartDashboard/enabled", 0, entry.BooleanValue(true)))
	srv.CreateEntry(entry.NewEntryData("/SmartDashboard/auto", 0, entry.StringValue("left")))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := client.Connect(ctx, "ws://"+addr, "example-client")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer c.Close()

	var names []string
	for _, data := range c.Entries() {
		names = append(names, fmt.Sprintf("%s %s", data.Name, data.EntryType()))
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Println(name)
	}
	// Output:
	// /SmartDashboard/auto string
	// /SmartDashboard/enabled boolean
}

// Creating an entry and waiting for the ID the server assigns
func ExampleRealClient_CreateEntry() {
	srv, addr := startExampleServer()
	defer srv.Destroy()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := client.Connect(ctx, "ws://"+addr, "example-client")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer c.Close()

	id, err := c.CreateEntry(ctx, entry.NewEntryData("/ws_test", 0, entry.DoubleValue(1.0)))
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(id, c.Entries()[id].Value.Double)
	// Output: 0 1
}

// Creating an entry and listing every entry by ID afterwards
func ExampleRealClient_Entries() {
	srv, addr := startExampleServer()
	defer srv.Destroy()
	srv.CreateEntry(entry.NewEntryData("/SmartDashboard/auto", 0, entry.StringValue("left")))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := client.Connect(ctx, "ws://"+addr, "example-client")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer c.Close()

	if _, err := c.CreateEntry(ctx, entry.NewEntryData("/foo", 0, entry.DoubleValue(1.0))); err != nil {
		fmt.Println(err)
		return
	}
	entries := c.Entries()
	ids := make([]int, 0, len(entries))
	for id := range entries {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	for _, id := range ids {
		data := entries[uint16(id)]
		fmt.Printf("%d => %s %s\n", id, data.Name, data.Value)
	}
	// Output:
	// 0 => /SmartDashboard/auto "left"
	// 1 => /foo 1
}
