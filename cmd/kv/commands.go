package kv

import (
	"bufio"
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/client"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/resp"
	"github.com/spf13/cobra"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"
)

var (
	execCmd = &cobra.Command{
		Use:   "exec [command] [args...]",
		Short: "Sends a command and prints the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := rkvClient.Execute(commandFromArgs(args))
			if err != nil {
				return err
			}
			fmt.Println(reply)
			return nil
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rkvStore.Set(args[0], []byte(args[1])); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	setECmd = &cobra.Command{
		Use:   "setE [key] [value] [ttl]",
		Short: "Sets the value for a key that expires after ttl (e.g. 10s, 5m)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, err := time.ParseDuration(args[2])
			if err != nil {
				return fmt.Errorf("ttl must be a duration: %w", err)
			}
			if err := rkvStore.SetE(args[0], []byte(args[1]), ttl); err != nil {
				return err
			}
			fmt.Println("setE successfully")
			return nil
		},
	}
	setEIfUnsetCmd = &cobra.Command{
		Use:   "setEIfUnset [key] [value] [ttl]",
		Short: "Sets the value for a key that expires after ttl if the key is not already set",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, err := time.ParseDuration(args[2])
			if err != nil {
				return fmt.Errorf("ttl must be a duration: %w", err)
			}
			ok, err := rkvStore.SetEIfUnset(args[0], []byte(args[1]), ttl)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, set=%t\n", args[0], ok)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, ok, err := rkvStore.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, value=%s\n", args[0], ok, value)
			return nil
		},
	}
	exprCmd = &cobra.Command{
		Use:   "expire [key] [ttl]",
		Short: "Sets the time to live of a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, err := time.ParseDuration(args[1])
			if err != nil {
				return fmt.Errorf("ttl must be a duration: %w", err)
			}
			ok, err := rkvStore.Expire(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, expire=%t\n", args[0], ok)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rkvStore.Delete(args[0]); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := rkvStore.Has(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", args[0], found)
			return nil
		},
	}
	pipeCmd = &cobra.Command{
		Use:   "pipe",
		Short: "Reads commands from stdin (one per line) and sends them as one pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmds, err := readCommands(os.Stdin)
			if err != nil {
				return err
			}
			replies, err := rkvClient.Pipeline(cmds...)
			if err != nil {
				return err
			}
			for i, reply := range replies {
				fmt.Printf("%d) %s\n", i+1, reply)
			}
			return nil
		},
	}
	multiCmd = &cobra.Command{
		Use:   "multi",
		Short: "Reads commands from stdin (one per line) and runs them in a transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmds, err := readCommands(os.Stdin)
			if err != nil {
				return err
			}
			reply, err := rkvClient.Transaction(cmds...)
			if err != nil {
				return err
			}
			fmt.Println(reply)
			return nil
		},
	}
	subscribeCmd = &cobra.Command{
		Use:   "subscribe [channels...]",
		Short: "Subscribes to channels and prints messages until interrupted",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSubscribe,
	}
)

// runSubscribe uses a dedicated connection, a subscribed connection cannot be shared
func runSubscribe(_ *cobra.Command, args []string) error {
	conn, err := client.DefaultConnectionFactory(rkvConfig.Parameters)
	if err != nil {
		return err
	}
	if err := conn.Connect(); err != nil {
		return err
	}

	// interrupt cancels the blocked read
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)
	go func() {
		if _, ok := <-interrupt; ok {
			_ = conn.Disconnect()
		}
	}()

	channels := make([]interface{}, len(args))
	for i, ch := range args {
		channels[i] = ch
	}
	confirmation, err := conn.ExecuteCommand(common.NewCommand("SUBSCRIBE", channels...))
	if err != nil {
		return err
	}
	fmt.Println(confirmation)

	for {
		reply, err := conn.ReadReply()
		if err != nil {
			if !conn.IsConnected() {
				return nil
			}
			return err
		}
		printMessage(reply.Frame)
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func commandFromArgs(args []string) *common.RawCommand {
	converted := make([]interface{}, 0, len(args)-1)
	for _, arg := range args[1:] {
		converted = append(converted, arg)
	}
	return common.NewCommand(args[0], converted...)
}

// readCommands parses one command per line, empty lines and lines starting with # are skipped
func readCommands(r io.Reader) ([]common.Command, error) {
	var cmds []common.Command
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		cmd, err := common.ParseCommand(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cmds = append(cmds, cmd)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(cmds) == 0 {
		return nil, fmt.Errorf("no commands on stdin")
	}
	return cmds, nil
}

// printMessage prints pub/sub messages as "channel: payload", other frames as they are
func printMessage(frame resp.Frame) {
	elems := frame.Elems
	switch {
	case len(elems) == 3 && strings.EqualFold(elems[0].Text(), "message"):
		fmt.Printf("%s: %s\n", elems[1].Text(), elems[2].Text())
	case len(elems) == 4 && strings.EqualFold(elems[0].Text(), "pmessage"):
		fmt.Printf("%s (%s): %s\n", elems[2].Text(), elems[1].Text(), elems[3].Text())
	default:
		fmt.Println(frame)
	}
}
