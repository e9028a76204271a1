package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/utkarshgupta2804/p2p-chat/p2p"
)

const defaultMaxConnections = 3

// ChatServerOpts contains configuration options for ChatServer
type ChatServerOpts struct {
	MaxConnections int           // Registry capacity
	Transport      p2p.Transport // Network transport
	Out            io.Writer     // Where chat messages and command results are printed
	Logger         *log.Logger   // Diagnostics
}

func (o *ChatServerOpts) applyDefaults() {
	if o.MaxConnections <= 0 {
		o.MaxConnections = defaultMaxConnections
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
}

// parsePort validates the listening port given on the command line
func parsePort(arg string) (uint16, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("port %q is not a number", arg)
	}
	if n < 1 || n > 65535 {
		return 0, fmt.Errorf("port %d out of range", n)
	}
	return uint16(n), nil
}
