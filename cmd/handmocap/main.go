package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/cheggaaa/pb/v3"

	"github.com/ayusman/handmocap/internal/app"
	"github.com/ayusman/handmocap/internal/capture"
	"github.com/ayusman/handmocap/internal/config"
	"github.com/ayusman/handmocap/internal/plugin"
	"github.com/ayusman/handmocap/internal/server"
	"github.com/ayusman/handmocap/internal/store"
	"github.com/ayusman/handmocap/internal/tray"
)

// pluginTimeout bounds one export plugin run.
const pluginTimeout = 30 * time.Second

const progressTemplate = `{{ string . "prefix" }} {{counters . }} {{bar . }} {{percent . }} {{etime . "%s elapsed"}}`

func main() {
	fmt.Println("Handmocap - Hand Motion Recorder")

	configPath := flag.String("config", "", "path to a JSON config file")
	dbPath := flag.String("db", "", "SQLite database path")
	addr := flag.String("addr", "", "HTTP listen address")
	input := flag.String("input", "", "replay a JSON-lines frame file instead of the live bridge")
	realtime := flag.Bool("realtime", false, "replay frames at their recorded pace")
	bridge := flag.String("bridge", "", "bridge command producing JSON-lines frames")
	outDir := flag.String("out", "", "directory for BVH and raw frame files")
	mode := flag.String("mode", "", "channel mode: rotation or position")
	order := flag.String("order", "", "rotation order, e.g. ZXY")
	convention := flag.String("convention", "", "coordinate convention: sensor or mirror-z")
	renormalize := flag.Bool("renormalize", false, "replace bases with their nearest rotation")
	saveRaw := flag.Bool("save-raw", false, "also write the raw frames of each take")
	saveParquet := flag.Bool("parquet", false, "also write each take's channels as parquet")
	pluginDir := flag.String("plugins", "", "export plugin directory")
	withTray := flag.Bool("tray", false, "show the system tray recording toggle")
	name := flag.String("name", "", "take name (replay mode)")
	serve := flag.Bool("serve", false, "run the HTTP server even when -input is set")
	driftTol := flag.Float64("drift-tolerance", 0, "basis orthonormality error to warn about (0 disables)")
	writeConfig := flag.String("write-config", "", "write the effective configuration to this JSON file and exit")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Flags given on the command line override the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db":
			cfg.DBPath = *dbPath
		case "addr":
			cfg.Addr = *addr
		case "input":
			cfg.Input = *input
		case "realtime":
			cfg.Realtime = *realtime
		case "bridge":
			fields := strings.Fields(*bridge)
			if len(fields) > 0 {
				cfg.BridgeCommand, cfg.BridgeArgs = fields[0], fields[1:]
			}
		case "out":
			cfg.OutputDir = *outDir
		case "mode":
			cfg.ChannelMode = *mode
		case "order":
			cfg.RotationOrder = *order
		case "convention":
			cfg.Convention = *convention
		case "renormalize":
			cfg.Renormalize = *renormalize
		case "save-raw":
			cfg.SaveRaw = *saveRaw
		case "parquet":
			cfg.SaveParquet = *saveParquet
		case "plugins":
			cfg.PluginDir = *pluginDir
		case "drift-tolerance":
			cfg.DriftTolerance = *driftTol
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if *writeConfig != "" {
		if err := cfg.Save(*writeConfig); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Configuration written to %s\n", *writeConfig)
		return
	}

	session, err := cfg.Session()
	if err != nil {
		log.Fatalf("Invalid session configuration: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	st, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	appCfg := app.Config{
		Store:       st,
		Session:     session,
		OutputDir:   cfg.OutputDir,
		SaveRaw:     cfg.SaveRaw,
		SaveParquet: cfg.SaveParquet,
	}
	hook := pluginHook(cfg.PluginDir)

	if cfg.Input != "" && !*serve {
		if err := replay(cfg, appCfg, hook, *name); err != nil {
			log.Fatalf("Replay failed: %v", err)
		}
		return
	}

	source, err := newSource(cfg)
	if err != nil {
		log.Fatalf("Failed to configure frame source: %v", err)
	}

	// A finite replay file ends the take by itself
	appCfg.AutoStop = cfg.Input != ""
	a := app.New(appCfg, source)

	live := server.NewLiveHandler()
	defer live.Close()
	a.RegisterSampleCallback(live.Publish)
	if hook != nil {
		a.RegisterStopCallback(func(r app.Result) { go hook(r) })
	}

	srv := server.New(server.Config{
		Store:    st,
		Recorder: a,
		Live:     live,
	})

	stopOnSignal(a)

	if !*withTray {
		fmt.Printf("Starting server on %s\n", cfg.Addr)
		if err := srv.ListenAndServe(cfg.Addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
		return
	}

	go func() {
		fmt.Printf("Starting server on %s\n", cfg.Addr)
		if err := srv.ListenAndServe(cfg.Addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()
	runTray(a, cfg.Addr)
}

// newSource returns the replay source when an input file is configured and
// the bridge otherwise.
func newSource(cfg *config.Config) (capture.Source, error) {
	if cfg.Input != "" {
		return capture.NewReplaySource(cfg.Input, cfg.Realtime), nil
	}
	return capture.NewBridgeSource(capture.BridgeConfig{
		Command: cfg.BridgeCommand,
		Args:    cfg.BridgeArgs,
	})
}

// replay records the input file as one take, showing progress by bytes read.
func replay(cfg *config.Config, appCfg app.Config, hook func(app.Result), name string) error {
	src := capture.NewReplaySource(cfg.Input, cfg.Realtime)
	a := app.New(appCfg, src)

	if name == "" {
		name = strings.TrimSuffix(filepath.Base(cfg.Input), filepath.Ext(cfg.Input))
	}
	if err := a.Start(name); err != nil {
		return err
	}

	_, total := src.Progress()
	bar := pb.ProgressBarTemplate(progressTemplate).Start64(total)
	bar.Set("prefix", name)
	bar.Set(pb.Bytes, true)

	done := make(chan struct{})
	go func() {
		a.Wait()
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-done:
			break loop
		case <-sigCh:
			log.Println("Interrupted, finalizing take")
			break loop
		case <-ticker.C:
			read, _ := src.Progress()
			bar.SetCurrent(read)
		}
	}
	read, _ := src.Progress()
	bar.SetCurrent(read)
	bar.Finish()

	result, err := a.Stop()
	if result.Data != nil {
		fmt.Printf("Recorded %d samples into %q\n", result.Data.Len(), result.Name)
	}
	if result.BVHPath != "" {
		fmt.Printf("BVH: %s\n", result.BVHPath)
	}
	if hook != nil {
		hook(result)
	}
	return err
}

// pluginHook discovers export plugins and returns a stop callback running
// them, or nil when there are none.
func pluginHook(dir string) func(app.Result) {
	if dir == "" {
		return nil
	}
	mgr := plugin.NewManager(dir)
	if err := mgr.Discover(); err != nil {
		log.Printf("Plugin discovery failed: %v", err)
		return nil
	}
	if len(mgr.Subscribers(plugin.EventTakeFinished)) == 0 {
		return nil
	}
	executor := plugin.NewExecutor(pluginTimeout)

	return func(r app.Result) {
		plugin.Notify(context.Background(), mgr, executor, plugin.EventTakeFinished, pluginTake(r))
	}
}

// pluginTake describes a finished take to export plugins.
func pluginTake(r app.Result) plugin.Take {
	take := plugin.Take{
		Name:    r.Name,
		BVHPath: r.BVHPath,
		RawPath: r.RawPath,
	}
	if r.Data != nil {
		take.Samples = r.Data.Len()
		take.FrameRate = r.Data.FrameRate
		take.Columns = r.Data.Columns
		take.ElapsedUs = make([]int64, len(r.Data.Index))
		for i, d := range r.Data.Index {
			take.ElapsedUs[i] = d.Microseconds()
		}
	}
	if r.Recording != nil {
		take.RecordingID = r.Recording.ID
	}
	return take
}

// stopOnSignal finalizes a running take before the process exits.
func stopOnSignal(a *app.App) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		if _, err := a.Stop(); err != nil && !errors.Is(err, app.ErrNotRecording) {
			log.Printf("Error finalizing take: %v", err)
		}
		os.Exit(0)
	}()
}

// runTray blocks running the system tray until Quit is chosen.
func runTray(a *app.App, addr string) {
	t := tray.New()
	t.OnToggle(func(recording bool) error {
		if recording {
			return a.Start("")
		}
		_, err := a.Stop()
		return err
	})
	t.OnSettings(func() {
		openBrowser("http://localhost" + addr + "/api/recordings")
	})
	t.OnQuit(func() {
		if a.IsRecording() {
			a.Stop()
		}
	})
	a.RegisterStopCallback(func(r app.Result) {
		t.SetRecording(false)
		samples := 0
		if r.Data != nil {
			samples = r.Data.Len()
		}
		t.SetLastTake(r.Name, samples)
	})
	t.Run()
}

func openBrowser(url string) {
	cmd := "xdg-open"
	if runtime.GOOS == "darwin" {
		cmd = "open"
	}
	if err := exec.Command(cmd, url).Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}
