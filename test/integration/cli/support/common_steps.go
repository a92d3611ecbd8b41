package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/MeKo-Tech/langdetect/cmd/langdetect/cmd"
	"github.com/MeKo-Tech/langdetect/internal/dataset"
	"github.com/MeKo-Tech/langdetect/internal/testutil"
	"github.com/cucumber/godog"
)

// tinyConfig produces a model small enough to train in a few seconds.
const tinyConfig = `log_level: error
languages: [en, fr, de]
model:
  path: models/tiny.model
  dictionary_path: models/tiny.dict
  embedding_size: 8
  attention_size: 6
  hidden_size: 10
  hidden_activation: tanh
tokenizer:
  max_token_length: 20
training:
  epochs: 2
  history_db: history.db
`

// writeFile writes content into the scenario directory.
func (testCtx *TestContext) writeFile(name string, content []byte) error {
	if err := os.WriteFile(testCtx.Path(name), content, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// aSampleCorpusAt writes the built-in English/French/German corpus.
func (testCtx *TestContext) aSampleCorpusAt(name string) error {
	var buf bytes.Buffer
	if err := dataset.WriteJSONL(&buf, testutil.SampleExamples(testutil.SampleCatalog())); err != nil {
		return err
	}
	return testCtx.writeFile(name, buf.Bytes())
}

// aFileWithContent writes a doc string verbatim.
func (testCtx *TestContext) aFileWithContent(name string, content *godog.DocString) error {
	return testCtx.writeFile(name, []byte(content.Content+"\n"))
}

// aTinyModelConfiguration writes langdetect.yaml, which the CLI picks up from
// the working directory.
func (testCtx *TestContext) aTinyModelConfiguration() error {
	return testCtx.writeFile("langdetect.yaml", []byte(tinyConfig))
}

// aTrainedTinyModel trains on the sample corpus so detection steps have a model.
func (testCtx *TestContext) aTrainedTinyModel() error {
	if err := testCtx.aTinyModelConfiguration(); err != nil {
		return err
	}
	if err := testCtx.aSampleCorpusAt("corpus.jsonl"); err != nil {
		return err
	}
	if err := testCtx.iRunCommand("langdetect train --training corpus.jsonl --validation corpus.jsonl --no-progress"); err != nil {
		return err
	}
	if err := testCtx.theCommandShouldSucceed(); err != nil {
		return fmt.Errorf("training the model: %w", err)
	}
	return nil
}

// splitCommand splits a command line on whitespace, honouring single and double quotes.
func splitCommand(command string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inArg   bool
	)
	for _, r := range command {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inArg = true
		case r == ' ' || r == '\t':
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(r)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in %q", command)
	}
	if inArg {
		args = append(args, current.String())
	}
	return args, nil
}

// execute runs the root command in-process with the given stdin.
func (testCtx *TestContext) execute(command, stdin string) error {
	testCtx.LastCommand = command

	parts, err := splitCommand(command)
	if err != nil {
		return err
	}
	if len(parts) > 0 && parts[0] == "langdetect" {
		parts = parts[1:]
	}
	if len(parts) == 0 {
		return errors.New("empty command")
	}

	cmd.ResetFlags()
	root := cmd.GetRootCommand()

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append(parts, "--no-color"))

	start := time.Now()
	err = root.Execute()
	testCtx.LastDuration = time.Since(start)

	testCtx.LastStdout = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastOutput = testCtx.LastStdout + testCtx.LastStderr
	testCtx.LastError = err
	if err != nil {
		testCtx.LastExitCode = 1
	} else {
		testCtx.LastExitCode = 0
	}

	cmd.ResetFlags()
	return nil
}

// iRunCommand executes a CLI command.
func (testCtx *TestContext) iRunCommand(command string) error {
	return testCtx.execute(command, "")
}

// iRunCommandWithInput executes a CLI command reading the doc string from stdin.
func (testCtx *TestContext) iRunCommandWithInput(command string, input *godog.DocString) error {
	return testCtx.execute(command, input.Content+"\n")
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies the output contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", text, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldMatch(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	if !re.MatchString(testCtx.LastOutput) {
		return fmt.Errorf("output does not match %q\nActual output: %s", pattern, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContainTimes(text string, count int) error {
	if got := strings.Count(testCtx.LastOutput, text); got != count {
		return fmt.Errorf("expected '%s' %d times, found %d\nActual output: %s", text, count, got, testCtx.LastOutput)
	}
	return nil
}

// stdoutJSON decodes standard output as a JSON object. Loading messages and
// logs go to stderr, so stdout holds nothing else.
func (testCtx *TestContext) stdoutJSON() (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(testCtx.LastStdout), &data); err != nil {
		return nil, fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastStdout)
	}
	return data, nil
}

// theOutputShouldBeValidJSON verifies the output is valid JSON.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	_, err := testCtx.stdoutJSON()
	return err
}

// theJSONShouldContain verifies JSON contains a specific field.
func (testCtx *TestContext) theJSONShouldContain(field string) error {
	data, err := testCtx.stdoutJSON()
	if err != nil {
		return err
	}
	_, err = lookupField(data, field)
	return err
}

// theJSONFieldShouldBeOneOf checks a field's string value against a comma separated list.
func (testCtx *TestContext) theJSONFieldShouldBeOneOf(field, values string) error {
	data, err := testCtx.stdoutJSON()
	if err != nil {
		return err
	}
	val, err := lookupField(data, field)
	if err != nil {
		return err
	}
	got := fmt.Sprint(val)
	for _, want := range strings.Split(values, ",") {
		if strings.TrimSpace(want) == got {
			return nil
		}
	}
	return fmt.Errorf("field '%s' is %q, expected one of %s", field, got, values)
}

func (testCtx *TestContext) theJSONFieldShouldBe(field, value string) error {
	data, err := testCtx.stdoutJSON()
	if err != nil {
		return err
	}
	val, err := lookupField(data, field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(val); got != value {
		return fmt.Errorf("field '%s' is %q, expected %q", field, got, value)
	}
	return nil
}

func (testCtx *TestContext) theJSONFieldShouldHaveEntries(field string, count int) error {
	data, err := testCtx.stdoutJSON()
	if err != nil {
		return err
	}
	val, err := lookupField(data, field)
	if err != nil {
		return err
	}
	arr, ok := val.([]any)
	if !ok {
		return fmt.Errorf("field '%s' is not an array", field)
	}
	if len(arr) != count {
		return fmt.Errorf("field '%s' has %d entries, expected %d", field, len(arr), count)
	}
	return nil
}

// lookupField follows a dotted path (e.g. "tokens.0.token") through decoded JSON.
func lookupField(data map[string]any, field string) (any, error) {
	var current any = data
	parts := strings.Split(field, ".")
	for i, part := range parts {
		switch node := current.(type) {
		case map[string]any:
			val, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field '%s' not found in JSON", strings.Join(parts[:i+1], "."))
			}
			current = val
		case []any:
			var idx int
			if _, err := fmt.Sscanf(part, "%d", &idx); err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("invalid index '%s' in '%s'", part, field)
			}
			current = node[idx]
		default:
			return nil, fmt.Errorf("cannot navigate deeper into non-object field '%s'", strings.Join(parts[:i], "."))
		}
	}
	return current, nil
}

// theErrorShouldMention verifies the error message contains specific text.
func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if testCtx.LastError == nil && testCtx.LastExitCode == 0 {
		return fmt.Errorf("no error occurred, but expected error containing '%s'", errorText)
	}

	fullErrorText := testCtx.LastOutput
	if testCtx.LastError != nil {
		fullErrorText += " " + testCtx.LastError.Error()
	}

	if !strings.Contains(strings.ToLower(fullErrorText), strings.ToLower(errorText)) {
		return fmt.Errorf("error does not contain '%s'\nActual error: %s", errorText, fullErrorText)
	}
	return nil
}

// theFileShouldExist verifies a file exists.
func (testCtx *TestContext) theFileShouldExist(filename string) error {
	if _, err := os.Stat(testCtx.Path(filename)); os.IsNotExist(err) {
		return fmt.Errorf("file %s does not exist", filename)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldNotExist(filename string) error {
	if _, err := os.Stat(testCtx.Path(filename)); err == nil {
		return fmt.Errorf("file %s exists", filename)
	}
	return nil
}

// theFileShouldContain verifies a file contains specific content.
func (testCtx *TestContext) theFileShouldContain(filename, expectedContent string) error {
	content, err := os.ReadFile(testCtx.Path(filename))
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	if !strings.Contains(string(content), expectedContent) {
		return fmt.Errorf("file %s does not contain '%s'", filename, expectedContent)
	}
	return nil
}

func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.SetEnv(name, value)
	return nil
}

// RegisterCommonSteps registers the command line step definitions.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	// Setup
	sc.Step(`^a sample corpus at "([^"]*)"$`, testCtx.aSampleCorpusAt)
	sc.Step(`^a file "([^"]*)" with:$`, testCtx.aFileWithContent)
	sc.Step(`^a tiny model configuration$`, testCtx.aTinyModelConfiguration)
	sc.Step(`^a trained tiny model$`, testCtx.aTrainedTinyModel)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)

	// Execution
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^I run "([^"]*)" with input:$`, testCtx.iRunCommandWithInput)

	// Outcome
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)

	// Output
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the output should match "([^"]*)"$`, testCtx.theOutputShouldMatch)
	sc.Step(`^the output should contain "([^"]*)" (\d+) times?$`, testCtx.theOutputShouldContainTimes)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON should contain "([^"]*)"$`, testCtx.theJSONShouldContain)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldBe)
	sc.Step(`^the JSON field "([^"]*)" should be one of "([^"]*)"$`, testCtx.theJSONFieldShouldBeOneOf)
	sc.Step(`^the JSON field "([^"]*)" should have (\d+) entries$`, testCtx.theJSONFieldShouldHaveEntries)

	// Files
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
}
