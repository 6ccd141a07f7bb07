package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"shuoba/assess"
	"shuoba/audio"
	"shuoba/config"
	"shuoba/doctor"
	"shuoba/encoder"
	"shuoba/log"
	"shuoba/playback"
	"shuoba/schedule"
	"shuoba/session"
	"shuoba/store"
)

var version = "dev"

func main() {
	configFlag := flag.String("config", "", "Config directory (default: OS-specific location)")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	topicsFlag := flag.String("topics", "", "Comma-separated topic list (overrides config)")
	localeFlag := flag.String("locale", "", "Assessment locale, e.g. zh-CN (overrides config)")
	userFlag := flag.String("user", "", "Learner id (overrides config)")
	dbFlag := flag.String("db", "", "Progress database path (overrides config)")
	seedFlag := flag.Int64("seed", 0, "Shuffle seed for the daily set (0 = random)")
	checkFlag := flag.String("check", "", "Headless: assess the given WAV file against -ref and exit")
	refFlag := flag.String("ref", "", "Reference text for -check")
	importFlag := flag.String("import", "", "Import sentences from a JSON file and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	flag.Parse()

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("shuoba %s\n", version)
		os.Exit(0)
	}

	if *doctorFlag {
		os.Exit(doctor.Run(*configFlag))
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *topicsFlag != "" {
		cfg.Content.Topics = strings.Split(*topicsFlag, ",")
	}
	if *localeFlag != "" {
		cfg.Locale = *localeFlag
	}
	if *userFlag != "" {
		cfg.UserID = *userFlag
	}
	if *dbFlag != "" {
		cfg.DBPath = *dbFlag
	}
	if *deviceFlag != "" {
		cfg.Device = *deviceFlag
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	if *checkFlag != "" {
		os.Exit(runCheck(cfg, *checkFlag, *refFlag))
	}

	repo, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Errorf("opening database: %v", err)
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	ctx := context.Background()

	if *importFlag != "" {
		os.Exit(runImport(ctx, repo, *importFlag))
	}

	corpus, err := loadOrSeedCorpus(ctx, repo, cfg)
	if err != nil {
		log.Errorf("loading corpus: %v", err)
		fmt.Fprintf(os.Stderr, "Error loading sentences: %v\n", err)
		os.Exit(1)
	}
	if len(corpus) == 0 {
		fmt.Println("No practice content available for topics:", strings.Join(cfg.Content.Topics, ", "))
		os.Exit(1)
	}

	history, err := repo.AllProgress(ctx, cfg.UserID)
	if err != nil {
		log.Errorf("loading progress: %v", err)
		fmt.Fprintf(os.Stderr, "Error loading progress: %v\n", err)
		os.Exit(1)
	}

	seed := *seedFlag
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	planner := schedule.NewPlanner(rand.New(rand.NewSource(seed)))
	set := planner.DailySet(corpus, history, schedule.YesterdayRecords(history))
	if len(set) == 0 {
		fmt.Println("Nothing to practice today.")
		os.Exit(0)
	}

	assessor, warm := buildAssessor(cfg)
	if warm != nil {
		go warm()
	}

	audioCtx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		os.Exit(1)
	}
	defer audioCtx.Close()

	selectedDevice := resolveDevice(audioCtx, cfg.Device, *setupFlag)

	orch, err := session.New(repo, assessor, audioCtx, cfg.UserID, cfg.Locale, set)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	orch.SetDevice(selectedDevice)

	speech, err := audio.NewSpeechDetector(encoder.SampleRate)
	if err != nil {
		log.Warnf("voice detection unavailable: %v", err)
	} else {
		orch.SetSpeechDetector(speech)
	}

	playback.Init()
	log.SessionStart(cfg.Locale, len(set))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	program := NewTUIProgram(orch, speech, selectedDevice)
	go func() {
		<-sigChan
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	orch.ReleaseAudio()
	log.SessionEnd(orch.Attempts())
}

// buildAssessor picks real or fake scoring based on credentials. The
// fake keeps the app usable for trying the flow without an Azure
// subscription.
func buildAssessor(cfg *config.Config) (assess.Assessor, func()) {
	if cfg.Speech.Region == "" || cfg.Speech.Key == "" {
		log.Warn("no speech credentials, using offline fake scoring")
		fmt.Fprintln(os.Stderr, "Warning: no speech credentials configured; scores will be simulated")
		return &assess.Fake{}, nil
	}
	var client *assess.Client
	if cfg.Speech.UseTokens {
		fetch := assess.STSFetcher(http.DefaultClient, cfg.Speech.Region, cfg.Speech.Key)
		client = assess.NewClientWithTokens(cfg.Speech.Region, assess.NewTokenCache(fetch))
	} else {
		client = assess.NewClient(cfg.Speech.Region, cfg.Speech.Key)
	}
	return client, client.Warm
}

func resolveDevice(audioCtx audio.Context, name string, setup bool) *audio.DeviceInfo {
	if name != "" {
		if devices, err := audioCtx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == name {
					return &devices[i]
				}
			}
		}
		log.Warnf("device %q not found, using default", name)
		return nil
	}
	if setup {
		dev, err := audio.SelectDevice(audioCtx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			return nil
		}
		return dev
	}
	return nil
}

// loadOrSeedCorpus reads the configured topics, filling an empty
// database first: from the configured corpus file when one is set,
// otherwise from the bundled demo sentences, so a fresh install has
// something to practice.
func loadOrSeedCorpus(ctx context.Context, repo *store.SQLite, cfg *config.Config) ([]store.Sentence, error) {
	corpus, err := schedule.LoadCorpus(ctx, repo, cfg.Content.Topics, cfg.Content.PerTopic)
	if err == nil && len(corpus) > 0 {
		return corpus, nil
	}

	if path := cfg.Content.CorpusPath; path != "" {
		sentences, err := readSentenceFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading corpus file: %w", err)
		}
		if err := repo.ImportSentences(ctx, sentences); err != nil {
			return nil, fmt.Errorf("importing corpus file: %w", err)
		}
		log.Infof("imported %d sentences from %s", len(sentences), path)
	} else {
		if err := repo.ImportSentences(ctx, demoSentences); err != nil {
			return nil, fmt.Errorf("seeding demo corpus: %w", err)
		}
		log.Infof("seeded %d demo sentences", len(demoSentences))
	}
	return schedule.LoadCorpus(ctx, repo, cfg.Content.Topics, cfg.Content.PerTopic)
}

func readSentenceFile(path string) ([]store.Sentence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sentences []store.Sentence
	if err := json.Unmarshal(data, &sentences); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return sentences, nil
}

func runImport(ctx context.Context, repo *store.SQLite, path string) int {
	sentences, err := readSentenceFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := repo.ImportSentences(ctx, sentences); err != nil {
		fmt.Fprintf(os.Stderr, "Error importing: %v\n", err)
		return 1
	}
	fmt.Printf("Imported %d sentences\n", len(sentences))
	return 0
}

// runCheck assesses a pre-recorded WAV file and prints the scores.
// Exercises the encode and assess path without a microphone or TUI.
func runCheck(cfg *config.Config, wavPath, ref string) int {
	if ref == "" {
		fmt.Fprintln(os.Stderr, "Usage: shuoba -check <wav-file> -ref <reference text>")
		return 1
	}
	data, err := os.ReadFile(wavPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	wav, err := encoder.Encode(data, encoder.SampleRate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding: %v\n", err)
		return 1
	}

	assessor, _ := buildAssessor(cfg)
	start := time.Now()
	result, err := assessor.Assess(context.Background(), wav, ref, cfg.Locale)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Printf("Assessed in %.1fs (retried=%v)\n", time.Since(start).Seconds(), result.Retried)
	printScore := func(name string, v *float64) {
		if v != nil {
			fmt.Printf("  %-13s %.1f\n", name, *v)
		}
	}
	printScore("overall", result.Overall)
	printScore("accuracy", result.Accuracy)
	printScore("fluency", result.Fluency)
	printScore("completeness", result.Completeness)
	printScore("prosody", result.Prosody)
	if result.Recognized != "" {
		fmt.Printf("  heard: %s\n", result.Recognized)
	}
	for _, w := range result.Words {
		fmt.Printf("    %-12s %.0f  %s\n", w.Token, w.Accuracy, w.ErrorKind)
	}
	return 0
}
