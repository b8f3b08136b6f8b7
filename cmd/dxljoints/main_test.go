package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hipsterbrown/dynamixel-joints/config"
	"github.com/hipsterbrown/dynamixel-joints/dynamixel"
	"github.com/hipsterbrown/dynamixel-joints/dynamixel/dxltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLayout = `
channels:
  - name: lleg
    port: /dev/ttyS6
    actuators:
      - {id: 12, center_offset: 2048}
      - {id: 14, center_offset: 2048}
  - name: trunk
    port: /dev/ttyS11
    actuators:
      - {id: 31}
`

type testRig struct {
	app    *app
	fakes  map[string]*dxltest.FakeChannel
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	layout string
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	layout := filepath.Join(t.TempDir(), "layout.yaml")
	require.NoError(t, os.WriteFile(layout, []byte(testLayout), 0o644))

	tr := &testRig{
		fakes: map[string]*dxltest.FakeChannel{
			"/dev/ttyS6":  dxltest.NewFakeChannel(),
			"/dev/ttyS11": dxltest.NewFakeChannel(),
		},
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		layout: layout,
	}
	tr.app = &app{
		stdout: tr.stdout,
		stderr: tr.stderr,
		opener: func(port string, baudNum int) (dynamixel.Channel, error) {
			fake, ok := tr.fakes[port]
			if !ok {
				return nil, errors.New("no such port")
			}
			return fake, nil
		},
	}
	return tr
}

func (tr *testRig) run(args ...string) int {
	return tr.app.run(context.Background(), append([]string{"-config", tr.layout}, args...))
}

func TestRun_TorqueOn(t *testing.T) {
	tr := newTestRig(t)

	code := tr.run("torque", "on")
	require.Equal(t, exitSuccess, code, tr.stderr.String())

	lleg := tr.fakes["/dev/ttyS6"].SyncCalls()
	require.Len(t, lleg, 1)
	assert.Equal(t, "sync_write_byte", lleg[0].Op)
	assert.Equal(t, []int{12, 14}, lleg[0].IDs)
	assert.Equal(t, []int{1, 1}, lleg[0].Values)

	trunk := tr.fakes["/dev/ttyS11"].SyncCalls()
	require.Len(t, trunk, 1)
	assert.Equal(t, []int{31}, trunk[0].IDs)

	// Buses are closed on the way out.
	assert.Equal(t, 1, tr.fakes["/dev/ttyS6"].CloseCalls)
	assert.Equal(t, 1, tr.fakes["/dev/ttyS11"].CloseCalls)
}

func TestRun_TorqueOff(t *testing.T) {
	tr := newTestRig(t)

	require.Equal(t, exitSuccess, tr.run("torque", "off"))

	calls := tr.fakes["/dev/ttyS11"].SyncCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, []int{0}, calls[0].Values)
}

func TestRun_Poll(t *testing.T) {
	tr := newTestRig(t)
	lleg := tr.fakes["/dev/ttyS6"]
	lleg.Set(12, 0x24, 3072)
	lleg.ReadErrs[14] = errors.New("no status")
	tr.fakes["/dev/ttyS11"].Set(31, 0x24, 100)

	code := tr.run("poll", "-n", "2")
	require.Equal(t, exitSuccess, code, tr.stderr.String())

	lines := strings.Split(strings.TrimSpace(tr.stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "lleg 12:1024 14:? trunk 31:100", lines[0])
	assert.Equal(t, lines[0], lines[1])

	assert.Contains(t, tr.stderr.String(), "position read failed")
}

func TestRun_Sweep(t *testing.T) {
	tr := newTestRig(t)

	code := tr.run("sweep", "-steps", "3", "-stride", "4", "-delay", "1us")
	require.Equal(t, exitSuccess, code, tr.stderr.String())

	calls := tr.fakes["/dev/ttyS6"].SyncCalls()
	require.Len(t, calls, 4)
	assert.Equal(t, "sync_write_byte", calls[0].Op)
	assert.Equal(t, []int{0, 0}, calls[1].Values)
	assert.Equal(t, []int{4, 4}, calls[2].Values)
	assert.Equal(t, []int{8, 8}, calls[3].Values)
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"dance"}},
		{"torque without state", []string{"torque"}},
		{"torque bad state", []string{"torque", "maybe"}},
		{"poll bad flag", []string{"poll", "-bogus"}},
		{"poll negative rounds", []string{"poll", "-n", "-1"}},
		{"poll influx without org", []string{"poll", "-influx", "http://localhost:8086"}},
		{"sweep zero stride", []string{"sweep", "-stride", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestRig(t)
			assert.Equal(t, exitCommandError, tr.run(tt.args...))
			assert.Empty(t, tr.fakes["/dev/ttyS6"].Calls)
		})
	}
}

func TestRun_BadLogLevel(t *testing.T) {
	tr := newTestRig(t)
	code := tr.app.run(context.Background(), []string{"-log-level", "loud", "torque", "on"})
	assert.Equal(t, exitCommandError, code)
	assert.Contains(t, tr.stderr.String(), "invalid log level")
}

func TestRun_MissingLayout(t *testing.T) {
	tr := newTestRig(t)
	code := tr.app.run(context.Background(), []string{"-config", filepath.Join(t.TempDir(), "none.yaml"), "torque", "on"})
	assert.Equal(t, exitCommandError, code)
	assert.Contains(t, tr.stderr.String(), "failed to read file")
}

func TestRun_OpenFailureClosesOpenedBuses(t *testing.T) {
	tr := newTestRig(t)
	delete(tr.fakes, "/dev/ttyS11")

	code := tr.run("torque", "on")
	assert.Equal(t, exitRunError, code)
	assert.Contains(t, tr.stderr.String(), "command failed")

	lleg := tr.fakes["/dev/ttyS6"]
	assert.Equal(t, 1, lleg.CloseCalls)
	assert.Empty(t, lleg.Calls)
}

func TestRun_BusFailure(t *testing.T) {
	tr := newTestRig(t)
	tr.fakes["/dev/ttyS11"].SyncErr = func(int, dxltest.Call) error {
		return errors.New("line fault")
	}

	code := tr.run("torque", "on")
	assert.Equal(t, exitRunError, code)
	assert.Contains(t, tr.stderr.String(), "channel trunk")
	assert.Contains(t, tr.stderr.String(), "line fault")
}

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func openTestRig(t *testing.T, tr *testRig) *rig {
	t.Helper()
	cfg, err := config.Load(tr.layout)
	require.NoError(t, err)
	r, err := tr.app.openRig(cfg)
	require.NoError(t, err)
	return r
}

type recordingSink struct {
	channels []string
	results  []dynamixel.ReadResults
	closed   bool
}

func (s *recordingSink) Record(channel string, results dynamixel.ReadResults, at time.Time) {
	s.channels = append(s.channels, channel)
	s.results = append(s.results, results)
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func TestPollRig_Sink(t *testing.T) {
	tr := newTestRig(t)
	tr.app.logger = newDiscardLogger()
	tr.fakes["/dev/ttyS6"].Set(12, 0x24, 2048)

	r := openTestRig(t, tr)
	defer r.Close()

	sink := &recordingSink{}
	err := tr.app.pollRig(context.Background(), r, pollOptions{rounds: 1}, sink)
	require.NoError(t, err)

	assert.Equal(t, []string{"lleg", "trunk"}, sink.channels)
	require.Len(t, sink.results[0], 2)
	assert.Equal(t, 12, sink.results[0][0].ID)
	assert.NoError(t, sink.results[0][0].Err)
}

func TestPollRig_Canceled(t *testing.T) {
	tr := newTestRig(t)
	tr.app.logger = newDiscardLogger()

	r := openTestRig(t, tr)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tr.app.pollRig(ctx, r, pollOptions{}, nil)
	assert.NoError(t, err)
	assert.Empty(t, tr.stdout.String())
}

func TestJointPoints(t *testing.T) {
	results := dynamixel.ReadResults{
		{ID: 12, Angle: 1.5, Value: 977},
		{ID: 14, Err: errors.New("timeout")},
		{ID: 16, Angle: -0.25, Value: -163},
	}

	points := jointPoints("lleg", results, time.Unix(1700000000, 0))
	require.Len(t, points, 2)
	for _, p := range points {
		assert.Equal(t, "joint", p.Name())
	}
}
