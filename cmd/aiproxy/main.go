// Command aiproxy is a smoke-test CLI for the proxy library. It reads
// provider keys from the environment, so a typical run is:
//
//	OPENAI_API_KEY=sk-... aiproxy chat --model gpt-4o-mini -m "hello"
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/blueberrycongee/aiproxy"
	"github.com/blueberrycongee/aiproxy/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "aiproxy:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: aiproxy <chat|chat-stream|embed> [flags]")
	}

	switch args[0] {
	case "chat":
		return runChat(args[1:], false)
	case "chat-stream":
		return runChat(args[1:], true)
	case "embed":
		return runEmbed(args[1:])
	default:
		return fmt.Errorf("unknown command %q (want chat, chat-stream, or embed)", args[0])
	}
}

func newClient(configPath string) (*aiproxy.Client, error) {
	opts := []aiproxy.Option{}
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, aiproxy.WithConfig(cfg))
	}
	return aiproxy.New(opts...)
}

func runChat(args []string, stream bool) error {
	name := "chat"
	if stream {
		name = "chat-stream"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	model := fs.String("model", "", "model name to route")
	message := fs.String("message", "", "message from the user")
	fs.StringVar(message, "m", "", "message from the user (shorthand)")
	configPath := fs.String("config", "", "optional config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *model == "" || *message == "" {
		return fmt.Errorf("%s requires --model and --message", name)
	}

	client, err := newClient(*configPath)
	if err != nil {
		return err
	}
	defer client.Close()

	req := &aiproxy.ChatRequest{
		Model:    *model,
		Messages: []aiproxy.ChatMessage{{Role: aiproxy.RoleUser, Content: *message}},
	}

	ctx := context.Background()
	if !stream {
		resp, err := client.Chat(ctx, req)
		if err != nil {
			return err
		}
		fmt.Printf("%s -> %s\n", resp.Provider, resp.Text)
		return nil
	}

	es, err := client.ChatStream(ctx, req)
	if err != nil {
		return err
	}
	defer es.Close()

	for {
		ev, err := es.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch e := ev.(type) {
		case aiproxy.Delta:
			fmt.Print(e.Text)
		case aiproxy.StreamError:
			fmt.Println()
			return e.Err
		}
	}
	fmt.Println()
	return nil
}

func runEmbed(args []string) error {
	fs := flag.NewFlagSet("embed", flag.ExitOnError)
	model := fs.String("model", "", "model name to route")
	input := fs.String("input", "", "input text")
	fs.StringVar(input, "i", "", "input text (shorthand)")
	configPath := fs.String("config", "", "optional config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *model == "" || *input == "" {
		return fmt.Errorf("embed requires --model and --input")
	}

	client, err := newClient(*configPath)
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Embed(context.Background(), &aiproxy.EmbedRequest{
		Model:  *model,
		Inputs: []string{*input},
	})
	if err != nil {
		return err
	}

	for i, v := range resp.Vectors {
		fmt.Printf("%d -> dim=%d\n", i, len(v))
	}
	return nil
}
