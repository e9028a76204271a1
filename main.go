package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/utkarshgupta2804/p2p-chat/p2p"
)

// makeServer creates and configures a ChatServer listening on listenAddr.
// out receives everything the user should see; diagnostics go to logger.
func makeServer(listenAddr string, out io.Writer, logger *log.Logger) *ChatServer {
	// Configure TCP transport options
	tcptransportOpts := p2p.TCPTransportOpts{
		ListenAddr:    listenAddr,           // Address to listen on
		HandshakeFunc: p2p.NOPHandshakeFunc, // No-op handshake function
		Decoder:       p2p.DefaultDecoder{}, // One read is one message
		Logger:        logger,
	}
	tcpTransport := p2p.NewTCPTransport(tcptransportOpts)

	s := NewChatServer(ChatServerOpts{
		MaxConnections: defaultMaxConnections,
		Transport:      tcpTransport,
		Out:            out,
		Logger:         logger,
	})

	// Assign OnPeer callback so every admitted connection lands in the registry
	tcpTransport.OnPeer = s.OnPeer

	return s
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "No port provided\ncommand: %s <port number>\n", os.Args[0])
		os.Exit(1)
	}
	port, err := parsePort(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\ncommand: %s <port number>\n", err, os.Args[0])
		os.Exit(1)
	}

	s := makeServer(fmt.Sprintf(":%d", port), os.Stdout, log.New(os.Stderr, "", log.LstdFlags))
	if err := s.Start(); err != nil {
		log.Fatalf("listen on port %d: %s", port, err)
	}

	cli := NewCommandLine(s)
	cli.printMenu()
	fmt.Fprintf(s.out, "This Chat Room is listening on port %d...\n", port)

	if err := cli.Run(os.Stdin); err != nil {
		log.Printf("reading commands: %s", err)
	}
}
