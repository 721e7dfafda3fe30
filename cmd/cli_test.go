package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAccount = "A-1234ABCD"

const snapshotFixture = `{
  "account": {
    "id": "acc-1",
    "ledgers": [
      {"balance": -1250, "ledgerType": "ELECTRICITY_LEDGER"}
    ],
    "allProperties": [{
      "id": "prop-1",
      "electricityMalos": [{
        "maloNumber": "DE001",
        "meter": {"id": "m-el"},
        "agreements": [{
          "product": {"code": "GO-24", "fullName": "Octopus Go", "isTimeOfUse": false},
          "unitRateInformation": {
            "__typename": "SimpleProductUnitRateInformation",
            "grossRateInformation": {"grossRate": "28.4"}
          },
          "validFrom": "2020-01-01T00:00:00+01:00",
          "validTo": null
        }]
      }],
      "gasMalos": []
    }]
  },
  "completedDispatches": [],
  "devices": [{
    "id": "dev-1",
    "name": "Car",
    "deviceType": "ELECTRIC_VEHICLES",
    "provider": "TESLA",
    "status": {"current": "LIVE", "currentState": "SMART_CONTROL_CAPABLE", "isSuspended": %t},
    "vehicleVariant": {"model": "Model 3", "batterySize": "57.5"}
  }]
}`

// fakeKraken answers the GraphQL operations the CLI sends and records them.
type fakeKraken struct {
	t         *testing.T
	suspended bool

	mu         sync.Mutex
	operations []string
	variables  []map[string]any
}

func newFakeKraken(t *testing.T) (*fakeKraken, *httptest.Server) {
	t.Helper()

	fake := &fakeKraken{t: t}
	server := httptest.NewServer(http.HandlerFunc(fake.serveHTTP))
	t.Cleanup(server.Close)

	return fake, server
}

func (f *fakeKraken) serveHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query         string         `json:"query"`
		Variables     map[string]any `json:"variables"`
		OperationName string         `json:"operationName"`
	}
	if !assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body)) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.operations = append(f.operations, body.OperationName)
	f.variables = append(f.variables, body.Variables)
	f.mu.Unlock()

	if body.OperationName != "krakenTokenAuthentication" {
		assert.Equal(f.t, "tok-1", r.Header.Get("Authorization"))
	}

	var data string
	switch body.OperationName {
	case "krakenTokenAuthentication":
		data = fmt.Sprintf(`{"obtainKrakenToken":{"token":"tok-1","payload":{"exp":%d}}}`, time.Now().Add(time.Hour).Unix())
	case "ComprehensiveDataQuery":
		data = fmt.Sprintf(snapshotFixture, f.suspended)
	case "viewerAccounts":
		data = `{"viewer":{"accounts":[{"number":"A-1111AAAA","ledgers":[{"balance":500,"ledgerType":"ELECTRICITY_LEDGER"}]},{"number":"A-2222BBBB","ledgers":[]}]}}`
	case "ChangeDeviceSuspension":
		data = `{"updateDeviceSmartControl":{"id":"dev-1"}}`
	case "triggerBoostCharge":
		data = `{"updateBoostCharge":{"id":"dev-1"}}`
	case "setDevicePreferences":
		data = `{"setDevicePreferences":{"id":"dev-1"}}`
	default:
		f.t.Errorf("unexpected operation %q", body.OperationName)
		data = `null`
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"data":%s}`, data)
}

func (f *fakeKraken) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.operations...)
}

func (f *fakeKraken) lastVariables(op string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.operations) - 1; i >= 0; i-- {
		if f.operations[i] == op {
			return f.variables[i]
		}
	}

	return nil
}

func TestVersionPrintsBuildVersion(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "octoflex dev ("))
}

func TestAccountAddListRemove(t *testing.T) {
	home := t.TempDir()
	t.Setenv(passwordEnv, "hunter2")

	stdout, _, err := executeCLI(t, home, "account", "add", testAccount, "--email", "jane@example.com", "--name", "Home")
	require.NoError(t, err)
	assert.Contains(t, stdout, "account A-1234ABCD saved")

	secret, err := os.ReadFile(filepath.Join(home, ".config", "octoflex", "secrets", "octoflex", testAccount, "password"))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(secret))

	stdout, _, err = executeCLI(t, home, "account", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "NUMBER")
	assert.Contains(t, stdout, testAccount)
	assert.Contains(t, stdout, "Home")
	assert.Contains(t, stdout, "jane@example.com")

	_, _, err = executeCLI(t, home, "account", "remove", testAccount)
	require.NoError(t, err)

	stdout, _, err = executeCLI(t, home, "account", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "no accounts configured")
	assert.NoFileExists(t, filepath.Join(home, ".config", "octoflex", "secrets", "octoflex", testAccount, "password"))
}

func TestAccountAddReadsPasswordFromStdin(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLIWithInput(t, home, "s3cret\n", "account", "add", testAccount, "--email", "jane@example.com", "--password-stdin")
	require.NoError(t, err)

	secret, err := os.ReadFile(filepath.Join(home, ".config", "octoflex", "secrets", "octoflex", testAccount, "password"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", string(secret))
}

func TestAccountAddRequiresPassword(t *testing.T) {
	home := t.TempDir()
	t.Setenv(passwordEnv, "")

	_, _, err := executeCLI(t, home, "account", "add", testAccount, "--email", "jane@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")
}

func TestAccountRemoveUnknownAccount(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "account", "remove", "A-0000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account not found")
}

func TestAccountDiscoverListsAndSaves(t *testing.T) {
	fake, server := newFakeKraken(t)
	home := t.TempDir()
	t.Setenv(apiEndpointEnv, server.URL)
	t.Setenv(emailEnv, "jane@example.com")
	t.Setenv(passwordEnv, "hunter2")

	stdout, _, err := executeCLI(t, home, "account", "discover", "--save")
	require.NoError(t, err)
	assert.Contains(t, stdout, "A-1111AAAA")
	assert.Contains(t, stdout, "electricity 5.00 EUR")
	assert.Contains(t, stdout, "2 account(s) saved")
	assert.Equal(t, []string{"krakenTokenAuthentication", "viewerAccounts"}, fake.ops())

	stdout, _, err = executeCLI(t, home, "account", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "A-1111AAAA")
	assert.Contains(t, stdout, "A-2222BBBB")
}

func TestStatusRequiresAccounts(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no accounts configured")
}

func TestStatusRendersSnapshot(t *testing.T) {
	fake, server := newFakeKraken(t)
	home := addTestAccount(t, server)

	stdout, _, err := executeCLI(t, home, "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "accounts: 1")
	assert.Contains(t, stdout, "Account A-1234ABCD")
	assert.Contains(t, stdout, "electricity balance:")
	assert.Contains(t, stdout, "Car")
	assert.Equal(t, []string{"krakenTokenAuthentication", "ComprehensiveDataQuery"}, fake.ops())
	assert.Equal(t, testAccount, fake.lastVariables("ComprehensiveDataQuery")["accountNumber"])
}

func TestStatusMachineReadableOutput(t *testing.T) {
	_, server := newFakeKraken(t)
	home := addTestAccount(t, server)

	stdout, _, err := executeCLI(t, home, "status", "--output", "json")
	require.NoError(t, err)
	require.True(t, json.Valid([]byte(stdout)))

	var docs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, testAccount, docs[0]["account"])

	stdout, _, err = executeCLI(t, home, "status", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, stdout, "account: A-1234ABCD")
}

func TestStatusRejectsUnknownOutput(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "status", "--output", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output")
}

func TestDeviceSuspendIssuesMutation(t *testing.T) {
	fake, server := newFakeKraken(t)
	home := addTestAccount(t, server)

	stdout, _, err := executeCLI(t, home, "device", "suspend", "dev-1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "suspend accepted for dev-1")
	assert.Contains(t, stdout, "expected within 5m0s")

	vars := fake.lastVariables("ChangeDeviceSuspension")
	require.NotNil(t, vars)
	assert.Equal(t, "SUSPEND", vars["action"])
	assert.Equal(t, "dev-1", vars["deviceId"])
}

func TestDeviceBoostJSONResult(t *testing.T) {
	fake, server := newFakeKraken(t)
	home := addTestAccount(t, server)

	stdout, _, err := executeCLI(t, home, "device", "boost", "on", "dev-1", "-o", "json")
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, "boost_on", result["kind"])
	assert.Equal(t, true, result["pending"])
	assert.NotEmpty(t, result["id"])
	assert.Equal(t, map[string]any{"deviceId": "dev-1", "action": "BOOST"}, fake.lastVariables("triggerBoostCharge")["input"])
}

func TestDeviceBoostUnavailableWhenSuspended(t *testing.T) {
	fake, server := newFakeKraken(t)
	fake.suspended = true
	home := addTestAccount(t, server)

	_, _, err := executeCLI(t, home, "device", "boost", "on", "dev-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capability not available")
	assert.NotContains(t, fake.ops(), "triggerBoostCharge")
}

func TestDevicePreferencesValidatesBeforeAnyRequest(t *testing.T) {
	testCases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "percentage step", args: []string{"--target-percentage", "42", "--target-time", "07:00"}, wantErr: "5% steps"},
		{name: "percentage range", args: []string{"--target-percentage", "10", "--target-time", "07:00"}, wantErr: "between 20 and 100"},
		{name: "time window", args: []string{"--target-percentage", "80", "--target-time", "18:30"}, wantErr: "between 04:00 and 17:00"},
		{name: "time format", args: []string{"--target-percentage", "80", "--target-time", "7am"}, wantErr: "target_time"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fake, server := newFakeKraken(t)
			home := addTestAccount(t, server)

			args := append([]string{"device", "preferences", "dev-1"}, tc.args...)
			_, _, err := executeCLI(t, home, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
			assert.Empty(t, fake.ops())
		})
	}
}

func TestDevicePreferencesSendsSchedule(t *testing.T) {
	fake, server := newFakeKraken(t)
	home := addTestAccount(t, server)

	stdout, _, err := executeCLI(t, home, "device", "preferences", "dev-1", "--target-percentage", "80", "--target-time", "7:30")
	require.NoError(t, err)
	assert.Contains(t, stdout, "set_device_preferences accepted for dev-1")
	assert.NotContains(t, stdout, "expected within")
	assert.Contains(t, fake.ops(), "setDevicePreferences")
}

func TestDeviceListShowsCapabilities(t *testing.T) {
	_, server := newFakeKraken(t)
	home := addTestAccount(t, server)

	stdout, _, err := executeCLI(t, home, "device", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "SMART CONTROL")
	assert.Contains(t, stdout, "dev-1")
	assert.Contains(t, stdout, "SMART_CONTROL_CAPABLE")
}

func TestDeviceCommandNeedsAccountWhenSeveralConfigured(t *testing.T) {
	_, server := newFakeKraken(t)
	home := addTestAccount(t, server)
	_, _, err := executeCLI(t, home, "account", "add", "A-9999ZZZZ", "--email", "joe@example.com")
	require.NoError(t, err)

	_, _, err = executeCLI(t, home, "device", "resume", "dev-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pass --account")
}

func TestInvalidConfigurationListsEveryProblem(t *testing.T) {
	home := t.TempDir()
	t.Setenv("OCTOFLEX_POLL_INTERVAL", "5s")
	t.Setenv("OCTOFLEX_API_REQUESTS_PER_HOUR", "0")
	t.Setenv("OCTOFLEX_POLL_METER_READINGS_EVERY", "-1m")

	_, _, err := executeCLI(t, home, "account", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll.interval")
	assert.Contains(t, err.Error(), "api.requests_per_hour")
	assert.Contains(t, err.Error(), "poll.meter_readings_every")
}

func TestConfigFileIsRead(t *testing.T) {
	home := t.TempDir()
	configDir := filepath.Join(home, ".config", "octoflex")
	require.NoError(t, os.MkdirAll(configDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte("[log]\nformat = \"xml\"\n"), 0o600))

	_, _, err := executeCLI(t, home, "account", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported log format")
}

const apiEndpointEnv = "OCTOFLEX_API_ENDPOINT"

// addTestAccount points the CLI at server and configures testAccount.
func addTestAccount(t *testing.T, server *httptest.Server) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv(apiEndpointEnv, server.URL)
	t.Setenv(passwordEnv, "hunter2")

	_, _, err := executeCLI(t, home, "account", "add", testAccount, "--email", "jane@example.com")
	require.NoError(t, err)

	return home
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	return executeCLIWithInput(t, home, "", args...)
}

func executeCLIWithInput(t *testing.T, home string, input string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)
	t.Setenv(configFileEnv, "")
	t.Setenv("OCTOFLEX_SECRETS_BACKEND", "file")
	t.Setenv("OCTOFLEX_POLL_METER_READINGS", "false")
	t.Setenv("OCTOFLEX_POLL_PLANNED_DISPATCHES", "false")
	t.Setenv("OCTOFLEX_LOG_LEVEL", "error")

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetIn(strings.NewReader(input))
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
