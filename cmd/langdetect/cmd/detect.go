package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/MeKo-Tech/langdetect/internal/detector"
	"github.com/MeKo-Tech/langdetect/internal/server"
	"github.com/spf13/cobra"
)

// detectCmd represents the detect command.
var detectCmd = &cobra.Command{
	Use:   "detect [text...]",
	Short: "Detect the language of a text",
	Long: `Detect the language of the text given as arguments.

Without arguments the command reads texts from standard input, one per line,
until an empty line or the end of input.

Examples:
  langdetect detect "Das ist ein kurzer Satz."
  langdetect detect --full --tokens "Ceci est une phrase."
  langdetect detect --format json "This is a sentence."
  echo "Questa è una frase." | langdetect detect`,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().StringP("model", "m", "", "model file (default from model.path)")
	detectCmd.Flags().StringP("dictionary", "d", "", "words frequency dictionary (default from model.dictionary_path when model.use_dictionary is set)")
	detectCmd.Flags().Bool("full", false, "print the score of every supported language")
	detectCmd.Flags().Bool("tokens", false, "print the classification of every token")
	detectCmd.Flags().StringP("format", "f", "text", "output format (text, json)")
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported output format: %s", format)
	}
	full, _ := cmd.Flags().GetBool("full")
	tokens, _ := cmd.Flags().GetBool("tokens")

	det, err := loadDetector(cmd.ErrOrStderr(), cfg, detectorOptions{
		modelPath:      stringFlag(cmd, "model", cfg.Model.Path),
		dictionaryPath: dictionaryPath(cmd, cfg),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	req := server.DetectRequest{Full: full, Tokens: tokens}

	if len(args) > 0 {
		req.Text = strings.Join(args, " ")
		return detectOne(out, det, req, format)
	}

	interactive := format == "text"
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		if interactive {
			_, _ = fmt.Fprint(out, "\nInsert a text (empty to exit): ")
		}
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			break
		}
		req.Text = text
		if err := detectOne(out, det, req, format); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if interactive {
		_, _ = fmt.Fprintln(out, "\nThank you, bye!")
	}
	return nil
}

// detectOne detects a single text and writes the result in the requested format.
func detectOne(out io.Writer, det *detector.Detector, req server.DetectRequest, format string) error {
	res, err := server.Detect(det, req)
	if err != nil {
		return err
	}
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetEscapeHTML(false)
		return enc.Encode(res)
	}
	writeDetection(out, res)
	return nil
}

func writeDetection(out io.Writer, res server.DetectResponse) {
	name := languageFmt.Sprintf("%s (%s)", res.Name, res.Language)
	if res.Unknown {
		name = unknownFmt.Sprint(res.Name)
	}
	_, _ = fmt.Fprintf(out, "Detected language: %s\n", name)

	if len(res.Scores) > 0 {
		_, _ = headerColor.Fprintln(out, "Scores:")
		for _, sc := range res.Scores {
			_, _ = fmt.Fprintf(out, "  %-4s %-20s %.4f\n", sc.Code, sc.Name, sc.Score)
		}
	}

	if len(res.Tokens) > 0 {
		_, _ = headerColor.Fprintln(out, "Tokens:")
		for _, tok := range res.Tokens {
			_, _ = fmt.Fprintf(out, "  %-20s %-8s %s\n", tok.Token, tok.Language, formatImportance(tok.Token, tok.Importance))
		}
	}
}

// formatImportance pairs every character of token with its attention weight.
func formatImportance(token string, importance []float64) string {
	if len(importance) == 0 {
		return ""
	}
	parts := make([]string, 0, len(importance))
	i := 0
	for _, r := range token {
		if i >= len(importance) {
			break
		}
		parts = append(parts, fmt.Sprintf("%c:%.2f", r, importance[i]))
		i++
	}
	return strings.Join(parts, " ")
}
