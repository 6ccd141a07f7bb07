package doctor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"shuoba/assess"
	"shuoba/audio"
	"shuoba/config"
	"shuoba/encoder"
	"shuoba/store"
)

// Run executes interactive diagnostic checks and returns an exit code
// (0=all pass, 1=any fail).
func Run(configDir string) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("shuoba doctor - interactive system diagnostics")
	fmt.Println("==============================================")

	allPass := true

	var captured []byte
	if data, ok := checkMicrophone(); ok {
		captured = data
	} else {
		allPass = false
	}
	if allPass && !checkEncoder(captured) {
		allPass = false
	}
	if !checkDatabase() {
		allPass = false
	}
	if allPass && !checkAssessment(configDir, captured) {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
	} else {
		fmt.Println("Some checks failed. See details above.")
	}

	if allPass {
		return 0
	}
	return 1
}

func checkMicrophone() ([]byte, bool) {
	fmt.Println()
	fmt.Println("[1/4] Microphone capture")

	reader := bufio.NewReader(os.Stdin)

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return nil, false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return nil, false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return nil, false
	}

	var device *audio.DeviceInfo
	if len(devices) == 1 {
		device = &devices[0]
		fmt.Printf("Using device: %s\n", device.Name)
	} else {
		fmt.Println()
		fmt.Println("Select input device:")
		for i, d := range devices {
			warn := ""
			if audio.IsBluetooth(d.Name) {
				warn = "  [BT: lower assessment accuracy]"
			}
			fmt.Printf("  %d. %s%s\n", i+1, d.Name, warn)
		}
		fmt.Printf("Choice [1-%d]: ", len(devices))

		devChoice, _ := reader.ReadString('\n')
		devChoice = strings.TrimSpace(devChoice)
		idx := 0
		if devChoice != "" {
			fmt.Sscanf(devChoice, "%d", &idx)
			idx--
		}
		if idx < 0 || idx >= len(devices) {
			fmt.Printf("  FAIL: invalid choice\n")
			return nil, false
		}
		device = &devices[idx]
		fmt.Printf("Selected: %s\n", device.Name)
	}

	fmt.Println()
	fmt.Print("Press Enter and speak for 3 seconds...")
	reader.ReadString('\n')

	stop := make(chan struct{})
	go func() {
		time.Sleep(3 * time.Second)
		close(stop)
	}()

	data, err := recordAudio(ctx, device, stop)
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return nil, false
	}
	if len(data) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return nil, false
	}

	fmt.Printf("  PASS: recorded %.1f KB\n", float64(len(data))/1024)
	return data, true
}

func checkEncoder(captured []byte) bool {
	fmt.Println()
	fmt.Println("[2/4] Waveform encoding")

	wav, err := encoder.Encode(captured, encoder.SampleRate)
	if err != nil {
		fmt.Printf("  FAIL: encode error: %v\n", err)
		return false
	}
	_, info, err := encoder.ParseWAV(wav)
	if err != nil {
		fmt.Printf("  FAIL: produced container does not parse: %v\n", err)
		return false
	}
	if info.Format != 1 || info.Channels != encoder.Channels ||
		info.SampleRate != encoder.SampleRate || info.BitsPerSample != encoder.BitsPerSample {
		fmt.Printf("  FAIL: unexpected format %+v\n", info)
		return false
	}

	fmt.Printf("  PASS: %.1fs mono 16kHz PCM (%.1f KB)\n",
		float64(info.DataSize)/2/encoder.SampleRate, float64(len(wav))/1024)
	return true
}

func checkDatabase() bool {
	fmt.Println()
	fmt.Println("[3/4] Progress database")

	path := filepath.Join(os.TempDir(), fmt.Sprintf("shuoba-doctor-%d.db", os.Getpid()))
	defer os.Remove(path)

	repo, err := store.OpenSQLite(path)
	if err != nil {
		fmt.Printf("  FAIL: cannot open database: %v\n", err)
		return false
	}
	defer repo.Close()

	ctx := context.Background()
	attempt := store.Attempt{ID: "doctor-1", SentenceID: "doctor-sentence", Scores: store.Scores{Overall: 75}}
	if err := repo.SaveProgress(ctx, "doctor", attempt); err != nil {
		fmt.Printf("  FAIL: write error: %v\n", err)
		return false
	}
	rec, err := repo.Progress(ctx, "doctor", "doctor-sentence")
	if err != nil || rec.Scores.Overall != 75 {
		fmt.Printf("  FAIL: read-back error: %v\n", err)
		return false
	}

	fmt.Println("  PASS: write/read round trip")
	return true
}

func checkAssessment(configDir string, captured []byte) bool {
	fmt.Println()
	fmt.Println("[4/4] Pronunciation assessment")

	cfg, err := config.Load(configDir)
	if err != nil {
		fmt.Printf("  FAIL: config error: %v\n", err)
		return false
	}
	if cfg.Speech.Key == "" || cfg.Speech.Region == "" {
		fmt.Println("  SKIP: no speech credentials configured (set AZURE_SPEECH_KEY and AZURE_SPEECH_REGION)")
		return true
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("What did you say during the mic check? (reference text): ")
	ref, _ := reader.ReadString('\n')
	ref = strings.TrimSpace(ref)
	if ref == "" {
		fmt.Println("  SKIP: no reference text entered")
		return true
	}

	wav, err := encoder.Encode(captured, encoder.SampleRate)
	if err != nil {
		fmt.Printf("  FAIL: encode error: %v\n", err)
		return false
	}

	client := assess.NewClient(cfg.Speech.Region, cfg.Speech.Key)
	result, err := client.Assess(context.Background(), wav, ref, cfg.Locale)
	if err != nil {
		fmt.Printf("  FAIL: assessment error: %v\n", err)
		return false
	}

	if result.Overall != nil {
		fmt.Printf("  PASS: scored %.0f/100 (heard: %q)\n", *result.Overall, result.Recognized)
	} else {
		fmt.Printf("  PASS: endpoint reachable, no score (heard: %q)\n", result.Recognized)
	}
	return true
}

func recordAudio(ctx audio.Context, device *audio.DeviceInfo, stop <-chan struct{}) ([]byte, error) {
	var pcmBuf []byte
	var bufMu sync.Mutex
	var stopped bool
	done := make(chan struct{})

	cfg := audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	}
	captureDevice, err := ctx.NewCapture(device, cfg, func(data []byte, frameCount uint32) {
		bufMu.Lock()
		if !stopped {
			pcmBuf = append(pcmBuf, data...)
		}
		bufMu.Unlock()
	})
	if err != nil {
		return nil, err
	}

	if err := captureDevice.Start(); err != nil {
		captureDevice.Close()
		return nil, err
	}

	fmt.Print("  Recording")
	ticker := time.NewTicker(500 * time.Millisecond)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	<-stop
	close(done)

	captureDevice.Stop()
	fmt.Println(" done")
	captureDevice.Close()

	bufMu.Lock()
	stopped = true
	out := pcmBuf
	bufMu.Unlock()
	return out, nil
}
