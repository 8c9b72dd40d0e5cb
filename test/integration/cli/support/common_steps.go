package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/mvgeo/internal/estimate"
	"github.com/MeKo-Tech/mvgeo/internal/testutil"
	"github.com/cucumber/godog"
)

// iRunCommand executes a command and stores the result.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)

	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] == "mvgeo" {
		parts[0] = binary()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = testCtx.TempDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	// Logs go to stderr, results to stdout
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	testCtx.LastStdout = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)

	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	} else {
		testCtx.LastExitCode = 0
	}

	return nil
}

// substituteCommandVariables replaces variables in command strings.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	command = strings.ReplaceAll(command, "{tmp}", testCtx.TempDir)
	if testCtx.ServerPort != 0 {
		command = strings.ReplaceAll(command, "{port}", strconv.Itoa(testCtx.ServerPort))
	}
	return command
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nStdout: %s\nStderr: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastStdout, testCtx.LastStderr)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastStdout)
	}
	return nil
}

// theOutputShouldContain verifies stdout contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastStdout, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastStdout)
	}
	return nil
}

// theOutputShouldNotContain verifies stdout lacks specific text.
func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastStdout, text) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", text, testCtx.LastStdout)
	}
	return nil
}

// theErrorOutputShouldContain verifies stderr contains specific text.
func (testCtx *TestContext) theErrorOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastStderr, expectedText) {
		return fmt.Errorf("stderr does not contain '%s'\nActual stderr: %s", expectedText, testCtx.LastStderr)
	}
	return nil
}

// theOutputShouldBeValidJSON verifies stdout is a single JSON document.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	var js json.RawMessage
	if err := json.Unmarshal([]byte(testCtx.LastStdout), &js); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastStdout)
	}
	return nil
}

// theJSONOutputFieldShouldBe compares a field of the JSON output.
func (testCtx *TestContext) theJSONOutputFieldShouldBe(field, expected string) error {
	return jsonFieldEquals([]byte(testCtx.LastStdout), field, expected)
}

// theJSONOutputFieldShouldExist checks that a field of the JSON output is present.
func (testCtx *TestContext) theJSONOutputFieldShouldExist(field string) error {
	_, err := lookupJSON([]byte(testCtx.LastStdout), field)
	return err
}

// lookupJSON resolves a dotted path such as "result.singular_values.2".
func lookupJSON(data []byte, field string) (any, error) {
	var current any
	if err := json.Unmarshal(data, &current); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w\nJSON: %s", err, data)
	}

	for _, part := range strings.Split(field, ".") {
		switch node := current.(type) {
		case map[string]any:
			val, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field '%s' not found in JSON", field)
			}
			current = val
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("invalid index '%s' in '%s'", part, field)
			}
			current = node[idx]
		default:
			return nil, fmt.Errorf("cannot navigate into '%s' of '%s'", part, field)
		}
	}
	return current, nil
}

func jsonFieldEquals(data []byte, field, expected string) error {
	val, err := lookupJSON(data, field)
	if err != nil {
		return err
	}
	got := fmt.Sprint(val)
	if arr, ok := val.([]any); ok {
		got = strconv.Itoa(len(arr))
	}
	if got != expected {
		return fmt.Errorf("field '%s' is '%s', want '%s'", field, got, expected)
	}
	return nil
}

// decodeResult parses the JSON estimation result on stdout.
func (testCtx *TestContext) decodeResult() (*estimate.Result, error) {
	var res estimate.Result
	if err := json.Unmarshal([]byte(testCtx.LastStdout), &res); err != nil {
		return nil, fmt.Errorf("output is not an estimation result: %w\nOutput: %s", err, testCtx.LastStdout)
	}
	return &res, nil
}

// theEstimatedMatrixShouldMatchTheFixture compares the result with the
// matrix that generated the fixture, up to scale and sign.
func (testCtx *TestContext) theEstimatedMatrixShouldMatchTheFixture(name string) error {
	truth, ok := testCtx.Truths[name]
	if !ok {
		return fmt.Errorf("no generating matrix recorded for fixture %s", name)
	}
	res, err := testCtx.decodeResult()
	if err != nil {
		return err
	}
	got := res.Dense()
	if got == nil {
		return fmt.Errorf("result of kind %s has no matrix", res.Kind)
	}
	if !testutil.SameUpToScale(got, truth, 1e-6) {
		return fmt.Errorf("estimated matrix %v does not match the fixture", res.Matrix)
	}
	return nil
}

// theSingularValuesShouldSatisfyConstraint checks the enforced structure.
func (testCtx *TestContext) theSingularValuesShouldSatisfyConstraint(kind string) error {
	res, err := testCtx.decodeResult()
	if err != nil {
		return err
	}
	sv := res.SingularValues
	if len(sv) != 3 {
		return fmt.Errorf("expected 3 singular values, got %d", len(sv))
	}
	if sv[2] > 1e-12*sv[0] {
		return fmt.Errorf("smallest singular value %g is not zero", sv[2])
	}
	if kind == "essential" && (sv[0]-sv[1]) > 1e-9*sv[0] {
		return fmt.Errorf("singular values %g and %g are not equal", sv[0], sv[1])
	}
	return nil
}

// theFileShouldExist verifies a file was created.
func (testCtx *TestContext) theFileShouldExist(filename string) error {
	info, err := os.Stat(testCtx.path(filename))
	if err != nil {
		return fmt.Errorf("file %s was not created: %w", filename, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file %s is empty", filename)
	}
	return nil
}

// theFileShouldContain checks file content.
func (testCtx *TestContext) theFileShouldContain(filename, expectedContent string) error {
	content, err := os.ReadFile(testCtx.path(filename))
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	if !strings.Contains(string(content), expectedContent) {
		return fmt.Errorf("file %s does not contain '%s'\nContent: %s", filename, expectedContent, content)
	}
	return nil
}

// theFileShouldBeAPNGImage decodes the file as PNG.
func (testCtx *TestContext) theFileShouldBeAPNGImage(filename string) error {
	f, err := os.Open(testCtx.path(filename))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("file %s is not a PNG image: %w", filename, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("file %s is an empty image", filename)
	}
	return nil
}

// theEnvironmentVariableIsSetTo sets an environment variable for commands.
func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.AddEnvVar(name, value)
	return nil
}

// theOutputShouldContainUsageInformation verifies help output.
func (testCtx *TestContext) theOutputShouldContainUsageInformation() error {
	for _, want := range []string{"Usage:", "Flags:"} {
		if err := testCtx.theOutputShouldContain(want); err != nil {
			return err
		}
	}
	return nil
}

// RegisterCommonSteps registers the command and output steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)

	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the error output should contain "([^"]*)"$`, testCtx.theErrorOutputShouldContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON output field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONOutputFieldShouldBe)
	sc.Step(`^the JSON output should have field "([^"]*)"$`, testCtx.theJSONOutputFieldShouldExist)
	sc.Step(`^the output should contain usage information$`, testCtx.theOutputShouldContainUsageInformation)

	sc.Step(`^the estimated matrix should match the fixture "([^"]*)"$`, testCtx.theEstimatedMatrixShouldMatchTheFixture)
	sc.Step(`^the singular values should satisfy the (fundamental|essential) constraint$`,
		testCtx.theSingularValuesShouldSatisfyConstraint)

	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the file "([^"]*)" should be a PNG image$`, testCtx.theFileShouldBeAPNGImage)
}
