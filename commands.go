package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
)

// command is one entry of the command manual
type command struct {
	name  string
	usage string
	help  string
	run   func(c *CommandLine, args string) bool // Returns true to end the session
}

var commands []command

func init() {
	commands = []command{
		{"help", "help", "display user interface options or command manual.", (*CommandLine).help},
		{"myip", "myip", "display IP address of your App.", (*CommandLine).myIP},
		{"myport", "myport", "display listening port of your App.", (*CommandLine).myPort},
		{"connect", "connect <destination> <port no>", "connect you to another peer's App to chat.", (*CommandLine).connect},
		{"list", "list", "list all the connected peers.", (*CommandLine).list},
		{"terminate", "terminate <connection id.>", "terminate a connection with specified ID mentioned in the list.", (*CommandLine).terminate},
		{"send", "send <connection id.> <message>", "send message to a connection with specified ID mentioned in the list.", (*CommandLine).send},
		{"exit", "exit", "close all connections and terminate this App.", (*CommandLine).exit},
	}
}

// CommandLine reads user commands and runs them against a ChatServer.
// Each command completes before the next line is read.
type CommandLine struct {
	server *ChatServer
	out    io.Writer
}

// NewCommandLine creates a CommandLine printing through the server's output
func NewCommandLine(s *ChatServer) *CommandLine {
	return &CommandLine{server: s, out: s.out}
}

// Run executes commands read from r until exit or end of input. End of
// input behaves like exit.
func (c *CommandLine) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprint(c.out, "\n>> Enter your command: ")
		if !scanner.Scan() {
			c.exit("")
			return scanner.Err()
		}
		if c.Execute(scanner.Text()) {
			return nil
		}
	}
}

// Execute runs a single input line. It returns true when the line was exit.
func (c *CommandLine) Execute(line string) bool {
	name, args := splitWord(strings.TrimRight(line, "\r\n"))
	if name == "" {
		return false
	}

	for _, cmd := range commands {
		if cmd.name == name {
			return cmd.run(c, args)
		}
	}

	fmt.Fprintln(c.out, "Invalid command. Type 'help' to see Commands Manual.")
	return false
}

func (c *CommandLine) printMenu() {
	fmt.Fprintln(c.out, "######################## WELCOME TO CHAT APPLICATION ########################")
	fmt.Fprintln(c.out, ">> Main Menu:")
	c.printManual()
	fmt.Fprintln(c.out, "NOTE: You can use 'help' command to display this command manual again")
	fmt.Fprintln(c.out, "##############################################################################")
}

func (c *CommandLine) printManual() {
	for i, cmd := range commands {
		fmt.Fprintf(c.out, "%-40s : %s\n", fmt.Sprintf("%02d. %s", i+1, cmd.usage), cmd.help)
	}
}

func (c *CommandLine) help(string) bool {
	fmt.Fprintln(c.out, "-------------------- COMMANDS MANUALS ------------------")
	c.printManual()
	fmt.Fprintln(c.out, "--------------------------------------------------------")
	return false
}

func (c *CommandLine) myIP(string) bool {
	fmt.Fprintf(c.out, "IP address of this App: %s\n", localIP())
	return false
}

func (c *CommandLine) myPort(string) bool {
	fmt.Fprintf(c.out, "Listening port of this App: %d\n", c.server.ListenPort())
	return false
}

func (c *CommandLine) connect(args string) bool {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		fmt.Fprintln(c.out, "Usage: connect <ip> <port>")
		return false
	}
	port, err := strconv.Atoi(fields[1])
	if err != nil {
		fmt.Fprintln(c.out, "Usage: connect <ip> <port>")
		return false
	}

	info, err := c.server.Connect(fields[0], port)
	if err != nil {
		fmt.Fprintf(c.out, "Cannot connect to %s:%s: %s\n", fields[0], fields[1], err)
		return false
	}

	fmt.Fprintf(c.out, "Connected to Chat Room %s successfully.\n", formatAddr(info.Addr))
	return false
}

func (c *CommandLine) list(string) bool {
	fmt.Fprintln(c.out, "------------------ ACTIVE CONNECTIONS ------------------")
	fmt.Fprintf(c.out, "%-22s %-24s %s\n", "ID", "IP Address", "Port No.")

	infos := c.server.List()
	if len(infos) == 0 {
		fmt.Fprintln(c.out, "* NOTE: Your connections list is empty!")
	}
	for _, info := range infos {
		fmt.Fprintf(c.out, "%-22d %-24s %d\n", info.Position+1, info.Addr.Addr(), info.Addr.Port())
	}

	fmt.Fprintln(c.out, "--------------------------------------------------------")
	return false
}

func (c *CommandLine) send(args string) bool {
	idStr, message := splitWord(args)
	if idStr == "" || message == "" {
		fmt.Fprintln(c.out, "Usage: send <connection_id> <message>")
		return false
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		fmt.Fprintln(c.out, capitalize(ErrInvalidID.Error())+".")
		return false
	}

	info, err := c.server.Send(id, message)
	if err != nil {
		fmt.Fprintf(c.out, "%s.\n", capitalize(err.Error()))
		return false
	}

	fmt.Fprintf(c.out, "Message is sent to Chat Room %d %s successfully.\n", id, formatAddr(info.Addr))
	return false
}

func (c *CommandLine) terminate(args string) bool {
	idStr, _ := splitWord(args)
	if idStr == "" {
		fmt.Fprintln(c.out, "Usage: terminate <connection_id>")
		return false
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		fmt.Fprintln(c.out, capitalize(ErrInvalidID.Error())+".")
		return false
	}

	info, err := c.server.Terminate(id)
	if err != nil {
		fmt.Fprintf(c.out, "%s.\n", capitalize(err.Error()))
		return false
	}

	fmt.Fprintf(c.out, "Connection with Chat Room %d %s is terminated.\n", id, formatAddr(info.Addr))
	return false
}

func (c *CommandLine) exit(string) bool {
	c.server.Exit()
	fmt.Fprintln(c.out, "Exiting Chat App...")
	return true
}

// splitWord returns the first whitespace-delimited word of s and the rest
// of s after the whitespace that follows it, untouched.
func splitWord(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeft(s[i:], " \t")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// localIP returns the first non-loopback IPv4 address of the host
func localIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "127.0.0.1"
}
