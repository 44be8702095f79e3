package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"mapchat/internal/grounding"
)

// askCmd sends a single question and prints the grounded answer.
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question without entering the chat interface",
	Long: `Sends one question through the active conversation and prints the
answer, its citations, and the resulting map reaction.

Example:
  mapchat ask "Where is the Eiffel Tower?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	ctrl, cleanup, err := buildController(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := ctrl.Send(cmd.Context(), question)
	if err != nil {
		return err
	}

	answer := res.Session.Messages[len(res.Session.Messages)-1]
	if renderer, rerr := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100)); rerr == nil {
		if out, rerr := renderer.Render(answer.Text); rerr == nil {
			fmt.Print(out)
		} else {
			fmt.Println(answer.Text)
		}
	} else {
		fmt.Println(answer.Text)
	}

	if s := sendStatus(res); s != "" {
		fmt.Println(s)
	}

	if len(answer.GroundingCitations) > 0 {
		fmt.Println("\nSources:")
		for i, c := range answer.GroundingCitations {
			marker := "web"
			if c.Kind == grounding.KindPlace {
				marker = "place"
			}
			title := c.Title
			if title == "" {
				title = c.URI
			}
			fmt.Printf("  %d. [%s] %s\n", i+1, marker, title)
		}
	}
	return nil
}
