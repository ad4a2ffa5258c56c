// Command gossipnode runs one participant in the gossip chat network: it
// dials an initial peer, listens for inbound peers on the fixed gossip
// port, serves a diagnostics HTTP API, and reads chat lines from
// standard input, mining and broadcasting each one. Grounded on
// original_source/main.c's main() (argument count check, initial dial,
// REPL fgets loop, "exit" terminator) and
// PeernetOfficial-core/mobile/mobile.go's config-load-then-start-services
// ordering.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"os"

	"github.com/zh-art/proyecto-servicios/archive"
	"github.com/zh-art/proyecto-servicios/config"
	"github.com/zh-art/proyecto-servicios/gossipnode"
	"github.com/zh-art/proyecto-servicios/statusapi"
	"github.com/zh-art/proyecto-servicios/wire"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: gossipnode <initial-peer-ip-or-host> <local-public-ipv4-dotted>")
		os.Exit(0)
	}
	initialPeer := os.Args[1]
	localAddr := os.Args[2]

	localIP4 := net.ParseIP(localAddr).To4()
	if localIP4 == nil {
		fmt.Fprintf(os.Stderr, "gossipnode: %q is not a dotted IPv4 address\n", localAddr)
		os.Exit(0)
	}
	var localIP wire.IPv4
	copy(localIP[:], localIP4)

	cfg, err := config.Load("gossipnode.yaml")
	if err != nil {
		log.Fatalf("gossipnode: loading config: %v", err)
	}

	node := gossipnode.New(localIP, gossipnode.Filters{})
	node.DialTimeout = cfg.DialTimeout.AsDuration()
	node.ReadTimeout = cfg.ReadTimeout.AsDuration()
	node.PeerRequestInterval = cfg.PeerRequestInterval.AsDuration()
	node.ArchiveRequestEvery = cfg.ArchiveRequestEvery

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	maxPeers := cfg.MaxPeers
	if maxPeers <= 0 {
		maxPeers = gossipnode.DefaultMaxPeers
	}
	go func() {
		if err := node.Listen(ctx, maxPeers); err != nil {
			node.Filters.LogError("Listen", "bind failed, running outbound-only: %v", err)
		}
	}()

	if cfg.DiagnosticsListen != "" {
		api := statusapi.New(node)
		go func() {
			if err := api.ListenAndServe(cfg.DiagnosticsListen); err != nil {
				node.Filters.LogError("statusapi", "listen failed: %v", err)
			}
		}()
	}

	initialIP := resolveIPv4(initialPeer)
	if initialIP == (wire.IPv4{}) {
		fmt.Fprintf(os.Stderr, "gossipnode: could not resolve initial peer %q\n", initialPeer)
	} else if _, err := node.Dial(ctx, initialIP); err != nil {
		fmt.Fprintf(os.Stderr, "gossipnode: could not connect to initial peer: %v\n", err)
	}

	repl(node)
}

// resolveIPv4 resolves host (a dotted address or a hostname) to its
// first IPv4 address, returning the zero value on failure.
func resolveIPv4(host string) wire.IPv4 {
	ips, err := net.LookupIP(host)
	if err != nil {
		return wire.IPv4{}
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			var out wire.IPv4
			copy(out[:], v4)
			return out
		}
	}
	return wire.IPv4{}
}

// repl reads chat lines from standard input, mines and appends each to
// the local archive, and broadcasts the result. "exit" terminates the
// process with code 0 (§6).
func repl(node *gossipnode.Node) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Enter a chat message to send (max 255 characters), or \"exit\" to quit:")

	for scanner.Scan() {
		line := scanner.Text()
		if line == "exit" {
			os.Exit(0)
		}

		content, err := archive.ParseContent([]byte(line))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid message: %v\n", err)
			continue
		}

		if !node.Archive.Append(content) {
			fmt.Fprintln(os.Stderr, "invalid message, try again :)")
			continue
		}

		blob := node.Archive.Serialize()
		digest := blob[len(blob)-16:]
		fmt.Printf("message added, archive now has %d messages, new digest %x...\n", node.Archive.Count(), digest[:8])
		node.Publish(blob)
	}
}
