package playback

import "testing"

func TestGenerateTickLengthAndEnvelope(t *testing.T) {
	samples := generateTick(44100, 1200, 0.1, 0.5, 60)
	if len(samples) != 4410 {
		t.Fatalf("len = %d, want 4410", len(samples))
	}
	// Exponential decay: late peaks are quieter than early ones.
	early, late := peak(samples[:441]), peak(samples[len(samples)-441:])
	if late >= early {
		t.Errorf("envelope not decaying: early peak %d, late peak %d", early, late)
	}
}

func TestGenerateDoubleBeepHasGap(t *testing.T) {
	samples := generateDoubleBeep(44100, 350, 0.08, 0.05, 0.6, 30)
	beepLen := int(44100 * 0.08)
	gapLen := int(44100 * 0.05)
	if len(samples) != beepLen*2+gapLen {
		t.Fatalf("len = %d", len(samples))
	}
	for i := beepLen; i < beepLen+gapLen; i++ {
		if samples[i] != 0 {
			t.Fatalf("gap sample %d = %d, want silence", i, samples[i])
		}
	}
}

func TestGenerateChimeTwoNotes(t *testing.T) {
	samples := generateChime(44100, 880, 1320, 0.09, 0.5, 25)
	noteLen := int(44100 * 0.09)
	if len(samples) != noteLen*2 {
		t.Fatalf("len = %d, want %d", len(samples), noteLen*2)
	}
	// Second note restarts the envelope, so its opening peak beats the
	// first note's tail.
	tail, restart := peak(samples[noteLen-441:noteLen]), peak(samples[noteLen:noteLen+441])
	if restart <= tail {
		t.Errorf("second note did not restart envelope: tail %d, restart %d", tail, restart)
	}
}

func peak(samples []int16) int16 {
	var max int16
	for _, s := range samples {
		if s > max {
			max = s
		}
		if -s > max {
			max = -s
		}
	}
	return max
}
