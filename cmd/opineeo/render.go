package main

import (
	"fmt"
	"os"
	"time"

	"opineeo/survey-widget/internal"
	"opineeo/survey-widget/internal/host"
	"opineeo/survey-widget/internal/style"
	"opineeo/survey-widget/internal/surveyapi"

	"github.com/spf13/cobra"
)

const renderPage = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<style id="opineeo-style">
%s
</style>
</head>
<body>
%s
</body>
</html>
`

func newRenderCommand() *cobra.Command {
	var (
		index    int
		cssFile  string
		branding bool
	)

	cmd := &cobra.Command{
		Use:   "render <survey-file>",
		Short: "Render one question of a survey definition to HTML",
		Long: `Render a survey definition (yaml or json) the way a mounted widget would show it,
as a standalone HTML page on stdout. An index past the last question renders the completion panel.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := internal.NewValidator()

			s, err := surveyapi.ReadSurveyFile(v, args[0])
			if err != nil {
				return err
			}

			req := host.PreviewRequest{Survey: s, Index: index, Branding: branding || s.Branding}
			if cssFile != "" {
				css, err := os.ReadFile(cssFile)
				if err != nil {
					return err
				}
				req.CustomCSS = string(css)
			}
			err = v.Struct(req)
			if err != nil {
				return fmt.Errorf("%w: %v", internal.ErrValidationFailed, err)
			}

			scoper, err := style.NewScoper(1)
			if err != nil {
				return err
			}
			preview, err := host.BuildPreview(scoper, time.Now(), req)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), renderPage, preview.CSS, preview.HTML)
			return err
		},
	}

	cmd.Flags().IntVar(&index, "index", 0, "question index to render")
	cmd.Flags().StringVar(&cssFile, "css", "", "file with custom css scoped to the survey")
	cmd.Flags().BoolVar(&branding, "branding", false, "show the branding link")
	return cmd
}
