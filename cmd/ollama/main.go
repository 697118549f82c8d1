// Command ollama sends a single prompt to an Ollama server and prints the reply.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/whyrusleeping/ollama"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("ollama", pflag.ContinueOnError)
	fs.StringP("endpoint", "e", "", "URL for the ollama endpoint (default $OLLAMA_HOST)")
	model := fs.StringP("model", "m", "", "name of the model to run; without --prompt, local models are listed")
	prompt := fs.StringP("prompt", "p", "", "text prompt submitted to the model")
	chat := fs.Bool("chat", false, "use the chat endpoint instead of generate")
	streamOut := fs.Bool("stream", true, "print the reply as it is generated")
	configPath := fs.String("config", "", "config file")
	verbose := fs.BoolP("verbose", "v", false, "log requests to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	v := viper.New()
	if err := v.BindPFlag("host", fs.Lookup("endpoint")); err != nil {
		return err
	}
	cfg, err := ollama.LoadConfig(v, *configPath)
	if err != nil {
		return err
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	client := ollama.NewClientFromConfig(cfg, ollama.WithLogger(log))
	if *prompt == "" {
		return listModels(client)
	}
	if *model == "" {
		return fmt.Errorf("--model is required with --prompt")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if *chat {
		return runChat(ctx, client, *model, *prompt, *streamOut)
	}
	return runGenerate(ctx, client, *model, *prompt, *streamOut)
}

func runGenerate(ctx context.Context, client *ollama.Client, model, prompt string, streamOut bool) error {
	req := ollama.GenerateRequest{Model: model, Prompt: prompt}
	if !streamOut {
		r, err := client.Generate(ctx, req)
		if err != nil {
			return err
		}
		fmt.Println(r.Response)
		return nil
	}

	s, err := client.GenerateStream(ctx, req)
	if err != nil {
		return err
	}
	for r, err := range s.All() {
		if err != nil {
			return err
		}
		fmt.Print(r.Response)
	}
	fmt.Println()
	return nil
}

func runChat(ctx context.Context, client *ollama.Client, model, prompt string, streamOut bool) error {
	req := ollama.ChatRequest{
		Model:    model,
		Messages: []ollama.Message{{Role: "user", Content: prompt}},
	}
	if !streamOut {
		r, err := client.Chat(ctx, req)
		if err != nil {
			return err
		}
		fmt.Println(r.Message.Content)
		return nil
	}

	s, err := client.ChatStream(ctx, req)
	if err != nil {
		return err
	}
	for r, err := range s.All() {
		if err != nil {
			return err
		}
		fmt.Print(r.Message.Content)
	}
	fmt.Println()
	return nil
}

func listModels(client *ollama.Client) error {
	r, err := client.List(context.Background())
	if err != nil {
		return err
	}
	for _, m := range r.Models {
		fmt.Printf("%s\t%s\t%d\n", m.Model, m.Details.ParameterSize, m.Size)
	}
	return nil
}
