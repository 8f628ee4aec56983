// Package debrief writes the post-race summary the engineer gives in the
// garage.
package debrief

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sethvargo/go-retry"

	"github.com/sjawhar/pit-radio/internal/llm"
	"github.com/sjawhar/pit-radio/internal/storage"
	"github.com/sjawhar/pit-radio/internal/telemetry"
)

const systemPrompt = `You are %s's race engineer writing the post-race debrief.
Summarize the race in markdown from the facts and the radio log below. Cover how the race went,
position changes, fuel, and the driver's questions. Finish with two or three concrete things
to work on. Keep it under 200 words.`

// IdempotencyStore remembers which prompts were already sent for a race.
type IdempotencyStore interface {
	ClaimDebriefRequest(raceID, promptHash string) (bool, error)
}

// retryDelays is the wait before each retry of a failed model call.
var retryDelays = []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}

type Debriefer struct {
	client  llm.Client
	driver  string
	store   IdempotencyStore
	backoff func() retry.Backoff
}

func New(client llm.Client, driver string, store IdempotencyStore) *Debriefer {
	if strings.TrimSpace(driver) == "" {
		driver = "the driver"
	}
	return &Debriefer{
		client:  client,
		driver:  driver,
		store:   store,
		backoff: func() retry.Backoff { return scheduleBackoff(retryDelays) },
	}
}

// scheduleBackoff waits each of delays in turn, then stops.
func scheduleBackoff(delays []time.Duration) retry.Backoff {
	next := 0
	return retry.BackoffFunc(func() (time.Duration, bool) {
		if next >= len(delays) {
			return 0, true
		}
		next++
		return delays[next-1], false
	})
}

// Debrief returns the debrief for race. A race with nothing on the radio
// gets an empty debrief. A prompt that was already answered for this race
// returns the stored debrief without calling the model again.
func (d *Debriefer) Debrief(ctx context.Context, race storage.Race, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", nil
	}

	user := Facts(race) + "\nRadio log:\n" + transcript
	hash := sha256.Sum256([]byte(user))
	promptHash := hex.EncodeToString(hash[:])

	if d.store != nil {
		claimed, err := d.store.ClaimDebriefRequest(race.ID, promptHash)
		if err != nil {
			return "", fmt.Errorf("claim debrief request: %w", err)
		}
		if !claimed && race.Debrief != "" {
			return race.Debrief, nil
		}
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(systemPrompt, d.driver)},
		{Role: llm.RoleUser, Content: user},
	}

	result, err := retry.DoValue(ctx, d.backoff(), func(ctx context.Context) (string, error) {
		result, err := d.client.Complete(ctx, messages)
		if err != nil {
			return "", retry.RetryableError(err)
		}
		return result, nil
	})
	if err != nil {
		return "", fmt.Errorf("debrief failed after retries: %w", err)
	}
	return strings.TrimSpace(result), nil
}

// Facts renders the stored race row as plain sentences for the prompt.
func Facts(race storage.Race) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Race started %s", race.StartedAt.UTC().Format("2006-01-02 15:04 UTC"))
	if race.EndedAt != nil {
		fmt.Fprintf(&b, " and lasted %s", race.EndedAt.Sub(race.StartedAt).Round(time.Second))
	}
	b.WriteString(".\n")

	if race.Position > 0 {
		fmt.Fprintf(&b, "Finished %s.\n", humanize.Ordinal(race.Position))
	}
	if race.TotalLaps > 0 {
		fmt.Fprintf(&b, "Completed %d of %d laps.\n", race.LapsCompleted, race.TotalLaps)
	} else if race.LapsCompleted > 0 {
		fmt.Fprintf(&b, "Completed %d laps.\n", race.LapsCompleted)
	}
	if race.BestLapMs > 0 {
		fmt.Fprintf(&b, "Best lap: %s.\n", telemetry.FormatLapTime(race.BestLapMs))
	}
	return b.String()
}
