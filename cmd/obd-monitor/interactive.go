package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/obdkit/obdkit-go/pkg/discovery"
	"github.com/obdkit/obdkit-go/pkg/interest"
	"github.com/obdkit/obdkit-go/pkg/pid"
	"github.com/obdkit/obdkit-go/pkg/telemetry"
)

// aliases maps friendly names accepted by the watch command to PIDs.
var aliases = map[string]pid.ID{
	"load":     pid.IDEngineLoad,
	"coolant":  pid.IDCoolantTemp,
	"rpm":      pid.IDEngineRPM,
	"speed":    pid.IDVehicleSpeed,
	"iat":      pid.IDIntakeAirTemp,
	"maf":      pid.IDMAFRate,
	"throttle": pid.IDThrottlePosition,
	"runtime":  pid.IDRuntime,
	"fuel":     pid.IDFuelLevel,
	"baro":     pid.IDBarometric,
	"voltage":  pid.IDControlVoltage,
	"ambient":  pid.IDAmbientAirTemp,
	"oil":      pid.IDOilTemp,
}

// console handles interactive mode for obd-monitor.
type console struct {
	engine *telemetry.Engine
	token  interest.Token
	rl     *readline.Instance

	cancelState func()
}

// newConsole creates the interactive console handler.
func newConsole(engine *telemetry.Engine) (*console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "obd> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	c := &console{
		engine: engine,
		token:  engine.MakeToken(),
		rl:     rl,
	}

	c.cancelState = engine.OnStateChange(func(old, new telemetry.State, reason string) {
		if reason != "" {
			fmt.Fprintf(rl.Stdout(), "state: %s -> %s (%s)\n", old, new, reason)
			return
		}
		fmt.Fprintf(rl.Stdout(), "state: %s -> %s\n", old, new)
	})

	return c, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
func (c *console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop.
func (c *console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()
	defer c.cancelState()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "connect", "c":
			c.cmdConnect(ctx)

		case "disconnect", "d":
			c.engine.Disconnect()
			fmt.Fprintln(c.rl.Stdout(), "Disconnected")

		case "status":
			c.cmdStatus()

		case "watch", "w":
			c.cmdWatch(args)

		case "unwatch":
			c.engine.Clear(c.token)
			c.engine.Sync()
			fmt.Fprintln(c.rl.Stdout(), "Interest cleared")

		case "interest":
			c.cmdInterest()

		case "stats", "s":
			c.cmdStats(args)

		case "reset":
			c.cmdReset(args)

		case "codes":
			c.cmdCodes()

		case "params", "p":
			c.cmdParams()

		case "discover":
			c.cmdDiscover(ctx)

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *console) cmdConnect(ctx context.Context) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := c.engine.Connect(connectCtx); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Connect failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "State: %s\n", c.engine.Status().State)
}

func (c *console) cmdStatus() {
	out := c.rl.Stdout()
	st := c.engine.Status()

	fmt.Fprintf(out, "State:      %s\n", st.State)
	if st.FailReason != "" {
		fmt.Fprintf(out, "Reason:     %s\n", st.FailReason)
	}
	fmt.Fprintf(out, "Interested: %s\n", c.engine.InterestedSet())
	fmt.Fprintf(out, "Tokens:     %d\n", c.engine.TokenCount())
	fmt.Fprintf(out, "Samples:    %d\n", c.engine.TotalSamples())
	fmt.Fprintf(out, "Restarts:   %d\n", c.engine.Restarts())
}

func (c *console) cmdWatch(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: watch <pid>... (e.g. 'watch rpm speed' or 'watch 0x0C')")
		return
	}

	set := pid.NewSet()
	for _, arg := range args {
		id, err := parsePID(arg)
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "%v\n", err)
			return
		}
		set.Add(id)
	}

	c.engine.Replace(set, c.token)
	fmt.Fprintf(c.rl.Stdout(), "Watching %s\n", set)
}

func (c *console) cmdInterest() {
	set := c.engine.InterestedSet()
	if len(set) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No interested parameters")
		return
	}
	for _, id := range set.Sorted() {
		fmt.Fprintf(c.rl.Stdout(), "  %s  %s\n", id.Hex(), describe(id))
	}
}

func (c *console) cmdStats(args []string) {
	out := c.rl.Stdout()

	if len(args) == 1 {
		id, err := parsePID(args[0])
		if err != nil {
			fmt.Fprintf(out, "%v\n", err)
			return
		}
		s, ok := c.engine.ParameterStatistics(id)
		if !ok {
			fmt.Fprintf(out, "No samples for %s\n", id)
			return
		}
		printStat(out, id, s.Latest.String(), s.Min, s.Max, s.SampleCount)
		return
	}

	all := c.engine.Statistics()
	if len(all) == 0 {
		fmt.Fprintln(out, "No statistics yet")
		return
	}

	ids := make([]pid.ID, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		s := all[id]
		printStat(out, id, s.Latest.String(), s.Min, s.Max, s.SampleCount)
	}
}

func printStat(out io.Writer, id pid.ID, latest string, min, max float64, n uint64) {
	fmt.Fprintf(out, "  %s %-26s latest=%-14s min=%-10g max=%-10g samples=%d\n",
		id.Hex(), describe(id), latest, min, max, n)
}

func (c *console) cmdReset(args []string) {
	if len(args) == 0 || args[0] == "all" {
		c.engine.ResetAllStats()
		fmt.Fprintln(c.rl.Stdout(), "All min/max windows reset")
		return
	}

	id, err := parsePID(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "%v\n", err)
		return
	}
	c.engine.ResetStats(id)
	fmt.Fprintf(c.rl.Stdout(), "Reset %s\n", id)
}

func (c *console) cmdCodes() {
	codes := c.engine.Codes()
	if len(codes) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No trouble codes")
		return
	}
	for _, code := range codes {
		kind := "manufacturer-specific"
		if code.IsGeneric() {
			kind = "generic"
		}
		fmt.Fprintf(c.rl.Stdout(), "  %s  (%s, %s)\n", code, code.System, kind)
	}
}

func (c *console) cmdParams() {
	out := c.rl.Stdout()
	for _, id := range pid.Known() {
		info, _ := pid.Lookup(id)
		fmt.Fprintf(out, "  %s  %-26s %s\n", id.Hex(), info.Name, info.Kind)
	}
	fmt.Fprintln(out, "Aliases:", strings.Join(sortedAliases(), " "))
}

func (c *console) cmdDiscover(ctx context.Context) {
	out := c.rl.Stdout()
	fmt.Fprintln(out, "Browsing for adapters...")

	browseCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	found, err := discovery.NewBrowser("").Browse(browseCtx)
	if err != nil {
		fmt.Fprintf(out, "Browse failed: %v\n", err)
		return
	}

	n := 0
	for svc := range found {
		n++
		fmt.Fprintf(out, "  %s  serial=%s protocol=%s addr=%s\n",
			svc.InstanceName, svc.Info.Serial, svc.Info.Protocol, svc.Addr())
	}
	if n == 0 {
		fmt.Fprintln(out, "No adapters found")
	}
}

func (c *console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
OBD Monitor Commands:
  Connection:
    connect            - Connect to the adapter
    disconnect         - Disconnect and discard statistics
    status             - Show connection state and counters

  Parameters:
    watch <pid>...     - Replace this console's interest set
    unwatch            - Clear this console's interest set
    interest           - Show the aggregated interested set
    params             - List known parameters and aliases

  Data:
    stats [pid]        - Show parameter statistics
    reset [pid|all]    - Collapse min/max windows around the latest value
    codes              - Show trouble codes from the last scan

  Other:
    discover           - Browse for adapters on the local network
    help               - Show this help
    quit               - Exit`)
}

// parsePID accepts an alias ("rpm") or a hex PID ("0x0C", "0c").
func parsePID(s string) (pid.ID, error) {
	if id, ok := aliases[strings.ToLower(s)]; ok {
		return id, nil
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 16)
	if err != nil {
		return 0, fmt.Errorf("unknown parameter %q (try 'params')", s)
	}
	return pid.ID(n), nil
}

func describe(id pid.ID) string {
	if info, ok := pid.Lookup(id); ok {
		return info.Name
	}
	return "(uncataloged)"
}

func sortedAliases() []string {
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
