package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amiinehachemi/portfolio-copilot/config"
	"github.com/amiinehachemi/portfolio-copilot/internal/rag"
)

func askCMD() *cobra.Command {
	var cfgPath string
	var showTiming bool
	ask := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question directly, without going through the HTTP server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			question := strings.Join(args, " ")

			res, err := rag.Query(cmd.Context(), question, cfg, nil)
			if err != nil {
				return err
			}

			fmt.Println(res.Answer)
			if len(res.SuggestedPages) > 0 {
				fmt.Println("\nSee also:")
				for _, p := range res.SuggestedPages {
					fmt.Printf("  %s  %s\n", p.Title, p.Href)
				}
			}
			if showTiming && res.Performance != nil {
				fmt.Printf("\ntotal %dms (retrieval %dms, model %dms)\n",
					res.Performance.TotalTimeMs, res.Performance.RetrievalTimeMs, res.Performance.ModelTimeMs)
			}
			return nil
		},
	}
	ask.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	ask.Flags().BoolVar(&showTiming, "timing", false, "print timing breakdown")

	return ask
}
