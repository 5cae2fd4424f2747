package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/tatianab/inner-city/internal/api"
	"github.com/tatianab/inner-city/internal/config"
	"github.com/tatianab/inner-city/internal/engine"
	"github.com/tatianab/inner-city/internal/logging"
	"github.com/tatianab/inner-city/internal/models"
	"github.com/tatianab/inner-city/internal/player"
	"github.com/tatianab/inner-city/internal/store"
	"github.com/tatianab/inner-city/internal/tui"
)

const maxTurns = 10

func main() {
	hint := flag.String("hint", "", "background for the simulated person")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Encoding: "console", Output: "stderr"})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	client := api.NewClient(cfg.BaseURL, api.WithTimeout(cfg.RequestTimeout), api.WithLogger(logger))
	// The simulator reacts to exercise screens itself, so transitions fire at once.
	eng := engine.New(store.New(), client, engine.WithLogger(logger), engine.WithTransitionDelay(time.Millisecond))
	defer eng.Close()

	p, err := player.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatalf("Failed to create player: %v", err)
	}
	defer p.Close()

	fmt.Println("--- Step 1: Loading the city ---")
	if err := eng.Sync(ctx); err != nil {
		logger.Warn("sync incomplete", zap.Error(err))
	}
	st := eng.Store().Snapshot()
	fmt.Println(tui.RenderMap(st))
	if st.Offline {
		log.Fatalf("Backend at %s is unreachable", cfg.BaseURL)
	}

	fmt.Println("--- Step 2: Choosing a mood ---")
	mood, err := p.ChooseMood(ctx, st.Progress, *hint)
	if err != nil {
		log.Fatalf("Failed to choose mood: %v", err)
	}
	fmt.Printf("Player chose %s, %s (%d/10)\n\n", mood.District, mood.Emotion, mood.Intensity)
	if err := eng.StartSession(ctx, mood.District, mood.Emotion, mood.Intensity); err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	printNotice(eng)

	for turn := 1; turn <= maxTurns; turn++ {
		fmt.Printf("--- Turn %d ---\n", turn)
		st := eng.Store().Snapshot()

		// Offered exercises are finished before anything else.
		if st.Screen == models.ScreenBreathing || st.Screen == models.ScreenPlacement {
			finishExercise(ctx, eng, st.Screen)
			continue
		}

		t, err := p.NextTurn(ctx, mood, st.Chat, turn, maxTurns)
		if err != nil {
			fmt.Printf("Player failed to decide: %v\n", err)
			break
		}

		switch t.Action {
		case player.ActionChat:
			fmt.Printf("Player: %s\n", t.Message)
			if err := eng.SendChat(ctx, t.Message); err != nil {
				fmt.Printf("Error sending message: %v\n", err)
			}
			// Let a scheduled transition land before the next turn.
			time.Sleep(10 * time.Millisecond)
			st = eng.Store().Snapshot()
			if st.Crisis != nil {
				fmt.Println(tui.RenderCrisis(st.Crisis))
				eng.DismissCrisis()
				break
			}
			if n := len(st.Chat); n > 0 && st.Chat[n-1].Role == models.RoleAgent {
				fmt.Printf("Aira: %s\n", st.Chat[n-1].Text)
			}
		case player.ActionStep:
			fmt.Println("Player completed a microstep")
			if _, err := eng.CompleteMicrostep(ctx); err != nil {
				fmt.Printf("Error completing step: %v\n", err)
			}
		case player.ActionExercise:
			finishExercise(ctx, eng, models.ScreenBreathing)
		case player.ActionEnd:
			fmt.Println("Player wants to close the session")
			turn = maxTurns
		}
		printNotice(eng)
		fmt.Println()
	}

	fmt.Println("--- Ending session ---")
	resp, err := eng.EndSession(ctx, nil)
	if err != nil {
		log.Fatalf("Failed to end session: %v", err)
	}
	if resp != nil {
		fmt.Printf("Points earned: %d, total %d, district level %d\n", resp.PointsEarned, resp.TotalPoints, resp.DistrictLevel)
	}
	fmt.Println(tui.RenderMap(eng.Store().Snapshot()))
}

func finishExercise(ctx context.Context, eng *engine.Engine, screen models.Screen) {
	kind := engine.TaskBreathing
	if screen == models.ScreenPlacement {
		kind = engine.TaskPlacement
	}
	fmt.Printf("Player finished the %s exercise\n", kind)
	if _, err := eng.CompleteExercise(ctx, kind, 30*time.Second); err != nil {
		fmt.Printf("Error completing exercise: %v\n", err)
	}
	printNotice(eng)
}

func printNotice(eng *engine.Engine) {
	if n := eng.Store().Snapshot().Notice; n != nil {
		fmt.Println(tui.RenderNotice(n))
	}
}
