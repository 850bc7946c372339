package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amiinehachemi/portfolio-copilot/client"
)

func chatCMD() *cobra.Command {
	var serverURL string
	chat := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat against a running copilot server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverURL == "" {
				serverURL = getenv("COPILOT_SERVER_URL", "http://localhost:8080")
			}
			cl, err := client.New(client.Config{BaseURL: serverURL})
			if err != nil {
				return err
			}
			conv := client.NewChat(cl)

			fmt.Println("Connected to", serverURL, "(empty line to quit)")
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				question := strings.TrimSpace(scanner.Text())
				if question == "" {
					break
				}

				printed := 0
				conv.OnUpdate = func() {
					msgs := conv.Messages()
					last := msgs[len(msgs)-1]
					if last.Role != client.RoleAssistant {
						return
					}
					if len(last.Content) > printed {
						fmt.Print(last.Content[printed:])
						printed = len(last.Content)
					}
					if !last.Streaming && len(last.SuggestedPages) > 0 {
						fmt.Println("\n\nSee also:")
						for _, p := range last.SuggestedPages {
							fmt.Printf("  %s  %s\n", p.Title, p.Href)
						}
					}
				}
				conv.Send(cmd.Context(), question)
				fmt.Println()
			}
			return scanner.Err()
		},
	}
	chat.Flags().StringVar(&serverURL, "server", "", "copilot server URL (default $COPILOT_SERVER_URL or http://localhost:8080)")

	return chat
}
