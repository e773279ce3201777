package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trickdraw/server/internal/classify"
	"github.com/trickdraw/server/internal/game"
	"github.com/trickdraw/server/internal/store"
	"github.com/trickdraw/server/internal/vocab"
)

// stubClassifier returns a fixed prediction list and counts calls.
type stubClassifier struct {
	mu    sync.Mutex
	preds []classify.Prediction
	calls int
}

func (c *stubClassifier) Classify(ctx context.Context, image []byte) ([]classify.Prediction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.preds, nil
}

func (c *stubClassifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *stubClassifier) setPreds(preds []classify.Prediction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preds = preds
}

// newRound spins up a game with the host as artist and an active round,
// then joins the bot player. Joining the bot after the deal keeps the
// artist deterministic.
func newRound(t *testing.T) (*game.Service, string, game.Player, game.GuessInfo) {
	t.Helper()
	vp, err := vocab.Load()
	require.NoError(t, err)
	svc := game.NewService(store.NewMemory(), vp)

	host := game.Player{ID: "h", Name: "Hanna"}
	gameID, err := svc.CreateGame(context.Background(), host)
	require.NoError(t, err)
	require.NoError(t, svc.StartRound(context.Background(), gameID, "h"))

	botPlayer := game.Player{ID: "bot:" + gameID, Name: "Sketchbot"}
	require.NoError(t, svc.JoinGame(context.Background(), gameID, botPlayer))

	info, err := svc.RoundState(context.Background(), gameID)
	require.NoError(t, err)
	return svc, gameID, botPlayer, info
}

func TestBotWinsRound(t *testing.T) {
	svc, gameID, botPlayer, info := newRound(t)
	cls := &stubClassifier{preds: []classify.Prediction{{Label: info.Question, Confidence: 0.9}}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := New(svc, cls, botPlayer, 0.1, 1000)
	go g.Run(ctx, gameID)

	require.NoError(t, svc.UpdateDrawing(ctx, gameID, info.Artist.ID, []byte{1, 2, 3}))

	require.Eventually(t, func() bool {
		info, err := svc.RoundState(context.Background(), gameID)
		return err == nil && info.IsFinished()
	}, 2*time.Second, 10*time.Millisecond, "bot should win the round")

	info, err := svc.RoundState(context.Background(), gameID)
	require.NoError(t, err)
	w, ok := info.Winner()
	require.True(t, ok)
	require.Equal(t, botPlayer.ID, w.PlayerID)
	require.Equal(t, 0.9, w.Confidence)

	scores, err := svc.Scores(context.Background(), gameID)
	require.NoError(t, err)
	require.Equal(t, 1, scores[botPlayer.ID])
}

func TestBotRespectsThreshold(t *testing.T) {
	svc, gameID, botPlayer, info := newRound(t)
	cls := &stubClassifier{preds: []classify.Prediction{{Label: info.Question, Confidence: 0.05}}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := New(svc, cls, botPlayer, 0.1, 1000)
	go g.Run(ctx, gameID)

	require.NoError(t, svc.UpdateDrawing(ctx, gameID, info.Artist.ID, []byte{1}))

	// The classifier ran but the confidence stayed below the bar.
	require.Eventually(t, func() bool {
		return cls.callCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	info, err := svc.RoundState(context.Background(), gameID)
	require.NoError(t, err)
	require.Empty(t, info.Guesses, "sub-threshold prediction must not be submitted")
}

func TestBotDoesNotRepeatGuess(t *testing.T) {
	svc, gameID, botPlayer, info := newRound(t)
	cls := &stubClassifier{preds: []classify.Prediction{{Label: "definitely-wrong", Confidence: 0.9}}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := New(svc, cls, botPlayer, 0.1, 1000)
	go g.Run(ctx, gameID)

	require.NoError(t, svc.UpdateDrawing(ctx, gameID, info.Artist.ID, []byte{1}))
	require.Eventually(t, func() bool {
		info, err := svc.RoundState(context.Background(), gameID)
		return err == nil && len(info.Guesses) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// A new drawing classified to the same label is not resubmitted.
	require.NoError(t, svc.UpdateDrawing(ctx, gameID, info.Artist.ID, []byte{2}))
	require.Eventually(t, func() bool {
		return cls.callCount() >= 2
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	got, err := svc.RoundState(context.Background(), gameID)
	require.NoError(t, err)
	require.Len(t, got.Guesses, 1, "identical guess must not be repeated")

	// A different label goes through again.
	cls.setPreds([]classify.Prediction{{Label: "also-wrong", Confidence: 0.9}})
	require.NoError(t, svc.UpdateDrawing(ctx, gameID, info.Artist.ID, []byte{3}))
	require.Eventually(t, func() bool {
		got, err := svc.RoundState(context.Background(), gameID)
		return err == nil && len(got.Guesses) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBotStopsWhenGameEnds(t *testing.T) {
	svc, gameID, botPlayer, info := newRound(t)
	cls := &stubClassifier{preds: []classify.Prediction{{Label: "definitely-wrong", Confidence: 0.9}}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := New(svc, cls, botPlayer, 0.1, 1000)
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx, gameID) }()

	// Win the round, then let the host end the game while the bot runs.
	alice := game.Player{ID: "a", Name: "Alice"}
	require.NoError(t, svc.JoinGame(context.Background(), gameID, alice))
	_, accepted, err := svc.SubmitGuessByPlayer(context.Background(), gameID, alice, info.Question)
	require.NoError(t, err)
	require.True(t, accepted)
	require.NoError(t, svc.FinishGame(context.Background(), gameID, "h"))

	select {
	case err := <-done:
		require.NoError(t, err, "bot should exit cleanly once the game is over")
	case <-time.After(2 * time.Second):
		t.Fatal("bot should stop when the game reaches the answer phase")
	}
}

func TestBotIgnoresFinishedRound(t *testing.T) {
	svc, gameID, botPlayer, info := newRound(t)
	cls := &stubClassifier{preds: []classify.Prediction{{Label: info.Question, Confidence: 0.9}}}

	// Someone already won.
	alice := game.Player{ID: "a", Name: "Alice"}
	require.NoError(t, svc.JoinGame(context.Background(), gameID, alice))
	_, accepted, err := svc.SubmitGuessByPlayer(context.Background(), gameID, alice, info.Question)
	require.NoError(t, err)
	require.True(t, accepted)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := New(svc, cls, botPlayer, 0.1, 1000)
	go g.Run(ctx, gameID)

	require.NoError(t, svc.UpdateDrawing(ctx, gameID, info.Artist.ID, []byte{1}))
	time.Sleep(150 * time.Millisecond)

	require.Zero(t, cls.callCount(), "finished rounds must not be classified")
	got, err := svc.RoundState(context.Background(), gameID)
	require.NoError(t, err)
	require.Len(t, got.Guesses, 1)
}
