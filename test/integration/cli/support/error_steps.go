package support

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cucumber/godog"
)

// theErrorShouldMention verifies stderr mentions errorText, ignoring case.
func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if testCtx.LastError == nil && testCtx.LastExitCode == 0 {
		return fmt.Errorf("no error occurred, but expected error containing '%s'", errorText)
	}

	if !strings.Contains(strings.ToLower(testCtx.LastStderr), strings.ToLower(errorText)) {
		return fmt.Errorf("error does not contain '%s'\nActual error: %s", errorText, testCtx.LastStderr)
	}
	return nil
}

// theErrorShouldMentionEither accepts one of two phrasings.
func (testCtx *TestContext) theErrorShouldMentionEither(first, second string) error {
	if err := testCtx.theErrorShouldMention(first); err == nil {
		return nil
	}
	return testCtx.theErrorShouldMention(second)
}

// theExitCodeShouldBe checks the process exit status.
func (testCtx *TestContext) theExitCodeShouldBe(codeStr string) error {
	code, err := strconv.Atoi(codeStr)
	if err != nil {
		return err
	}
	if testCtx.LastExitCode != code {
		return fmt.Errorf("exit code is %d, want %d\nStderr: %s", testCtx.LastExitCode, code, testCtx.LastStderr)
	}
	return nil
}

// theCommandShouldNotPanic makes sure failures are reported as errors.
func (testCtx *TestContext) theCommandShouldNotPanic() error {
	if strings.Contains(testCtx.LastStderr, "panic:") || strings.Contains(testCtx.LastStderr, "goroutine ") {
		return fmt.Errorf("command panicked:\n%s", testCtx.LastStderr)
	}
	return nil
}

// theErrorShouldSuggestAvailableCommands verifies cobra's suggestion output.
func (testCtx *TestContext) theErrorShouldSuggestAvailableCommands() error {
	return testCtx.theErrorShouldMentionEither("Did you mean", "unknown command")
}

// RegisterErrorSteps registers the error handling steps.
func (testCtx *TestContext) RegisterErrorSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the error should mention "([^"]*)" or "([^"]*)"$`, testCtx.theErrorShouldMentionEither)
	sc.Step(`^the exit code should be (\d+)$`, testCtx.theExitCodeShouldBe)
	sc.Step(`^the command should not panic$`, testCtx.theCommandShouldNotPanic)
	sc.Step(`^the error should suggest available commands$`, testCtx.theErrorShouldSuggestAvailableCommands)
}
