package support

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"syscall"

	"github.com/MeKo-Tech/mvgeo/internal/server"
	"github.com/MeKo-Tech/mvgeo/internal/testutil"
	"github.com/cucumber/godog"
)

// anEstimationServerIsRunning starts the API in-process.
func (testCtx *TestContext) anEstimationServerIsRunning() error {
	return testCtx.createTestHTTPServer(nil)
}

// anEstimationServerWithRateLimit starts the API with a burst limiter.
func (testCtx *TestContext) anEstimationServerWithRateLimit(rps float64, burst int) error {
	return testCtx.createTestHTTPServer(func(c *server.Config) {
		c.RateLimit = server.RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: rps,
			Burst:             burst,
		}
	})
}

// anEstimationServerWithBodyLimit starts the API with a small body limit.
func (testCtx *TestContext) anEstimationServerWithBodyLimit(kb int) error {
	return testCtx.createTestHTTPServer(func(c *server.Config) {
		c.MaxBodyKB = int64(kb)
	})
}

// anEstimationServerWithCORSOrigin starts the API for a single origin.
func (testCtx *TestContext) anEstimationServerWithCORSOrigin(origin string) error {
	return testCtx.createTestHTTPServer(func(c *server.Config) {
		c.CORSOrigin = origin
	})
}

func (testCtx *TestContext) iGET(endpoint string) error {
	return testCtx.doRequest(http.MethodGet, endpoint, nil, nil)
}

func (testCtx *TestContext) iPOSTBody(body, endpoint string) error {
	return testCtx.doRequest(http.MethodPost, endpoint, []byte(body), nil)
}

func (testCtx *TestContext) iMakeAnOPTIONSRequestTo(endpoint string) error {
	return testCtx.doRequest(http.MethodOptions, endpoint, nil, map[string]string{
		"Origin":                        "https://example.com",
		"Access-Control-Request-Method": http.MethodPost,
	})
}

// iPOSTTheFixtureTimes expects the final status after n requests.
func (testCtx *TestContext) iPOSTTheFixtureTimes(name, endpoint string, n int) error {
	_, err := testCtx.postFixtureTimes(name, endpoint, n)
	return err
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("response status is %d, want %d\nResponse: %s",
			testCtx.LastHTTPStatusCode, status, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseFieldShouldBe(field, expected string) error {
	return jsonFieldEquals([]byte(testCtx.LastHTTPResponse), field, expected)
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, expected string) error {
	if got := testCtx.LastHTTPHeaders.Get(name); got != expected {
		return fmt.Errorf("header %s is '%s', want '%s'", name, got, expected)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldNotBeEmpty(name string) error {
	if testCtx.LastHTTPHeaders.Get(name) == "" {
		return fmt.Errorf("header %s is missing", name)
	}
	return nil
}

// theResponseMatrixShouldMatchTheFixture compares an API result with the
// generating matrix.
func (testCtx *TestContext) theResponseMatrixShouldMatchTheFixture(name string) error {
	truth, ok := testCtx.Truths[name]
	if !ok {
		return fmt.Errorf("no generating matrix recorded for fixture %s", name)
	}
	res, err := testCtx.responseResult()
	if err != nil {
		return err
	}
	if got := res.Dense(); got == nil || !testutil.SameUpToScale(got, truth, 1e-6) {
		return fmt.Errorf("response matrix %v does not match the fixture", res.Matrix)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeAPNGImage() error {
	if ct := testCtx.LastHTTPHeaders.Get("Content-Type"); ct != "image/png" {
		return fmt.Errorf("content type is %s, want image/png", ct)
	}
	if !strings.HasPrefix(testCtx.LastHTTPResponse, "\x89PNG") {
		return errors.New("response body is not a PNG image")
	}
	return nil
}

// iStartTheServerWith runs the real binary.
func (testCtx *TestContext) iStartTheServerWith(args string) error {
	return testCtx.StartServer(args)
}

func (testCtx *TestContext) theHealthEndpointShouldRespondWithStatus(status int) error {
	if err := testCtx.iGET("/health"); err != nil {
		return err
	}
	return testCtx.theResponseStatusShouldBe(status)
}

func (testCtx *TestContext) iSendSignalToTheServer(sig string) error {
	switch sig {
	case "SIGTERM":
		return testCtx.SendSignalToServer(syscall.SIGTERM)
	case "SIGINT":
		return testCtx.SendSignalToServer(syscall.SIGINT)
	}
	return fmt.Errorf("unsupported signal %s", sig)
}

// RegisterServerSteps registers the HTTP API steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^an estimation server is running$`, testCtx.anEstimationServerIsRunning)
	sc.Step(`^an estimation server is running with (\d+(?:\.\d+)?) requests per second and burst (\d+)$`,
		func(rps string, burst int) error {
			r, err := strconv.ParseFloat(rps, 64)
			if err != nil {
				return err
			}
			return testCtx.anEstimationServerWithRateLimit(r, burst)
		})
	sc.Step(`^an estimation server is running with a body limit of (\d+) KB$`, testCtx.anEstimationServerWithBodyLimit)
	sc.Step(`^an estimation server is running for origin "([^"]*)"$`, testCtx.anEstimationServerWithCORSOrigin)

	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I POST the fixture "([^"]*)" to "([^"]*)"$`, testCtx.postFixture)
	sc.Step(`^I POST the fixture "([^"]*)" to "([^"]*)" (\d+) times$`, testCtx.iPOSTTheFixtureTimes)
	sc.Step(`^I POST '([^']*)' to "([^"]*)"$`, testCtx.iPOSTBody)
	sc.Step(`^I make an OPTIONS request to "([^"]*)"$`, testCtx.iMakeAnOPTIONSRequestTo)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseFieldShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.responseContains)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response header "([^"]*)" should not be empty$`, testCtx.theResponseHeaderShouldNotBeEmpty)
	sc.Step(`^the response matrix should match the fixture "([^"]*)"$`, testCtx.theResponseMatrixShouldMatchTheFixture)
	sc.Step(`^the response should be a PNG image$`, testCtx.theResponseShouldBeAPNGImage)

	sc.Step(`^I start the server with "([^"]*)"$`, testCtx.iStartTheServerWith)
	sc.Step(`^the health endpoint should respond with status (\d+)$`, testCtx.theHealthEndpointShouldRespondWithStatus)
	sc.Step(`^I send (SIGTERM|SIGINT) to the server$`, testCtx.iSendSignalToTheServer)
	sc.Step(`^the server should shut down gracefully$`, testCtx.theServerShouldExitCleanly)
}
