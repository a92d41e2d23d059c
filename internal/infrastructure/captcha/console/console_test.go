package console

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"formageddon/internal/infrastructure/captcha"
)

func newTestConsole(t *testing.T) (*Console, *captcha.FileSink) {
	t.Helper()
	sink, err := captcha.NewFileSink(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	c := New(Config{Addr: ":0", Sink: sink})
	return c, sink
}

func TestListChallenges(t *testing.T) {
	c, sink := newTestConsole(t)
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	if _, err := sink.Put(context.Background(), "letter-1", []byte("img")); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/challenges")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var list struct {
		Pending []string `json:"pending"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list.Pending) != 1 || list.Pending[0] != "letter-1" {
		t.Errorf("pending = %v", list.Pending)
	}
}

func TestChallengeImageServed(t *testing.T) {
	c, sink := newTestConsole(t)
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	payload := []byte("image-bytes")
	if _, err := sink.Put(context.Background(), "letter-1", payload); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/challenges/letter-1/image")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), payload) {
		t.Error("served image should match the stored challenge")
	}

	missing, err := http.Get(srv.URL + "/challenges/unknown/image")
	if err != nil {
		t.Fatal(err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("unknown letter status = %d, want 404", missing.StatusCode)
	}
}

func TestPostSolutionInvokesCallbackAndClears(t *testing.T) {
	c, sink := newTestConsole(t)

	var gotLetter, gotSolution string
	c.SetOnSolution(func(_ context.Context, letterID, solution string) error {
		gotLetter, gotSolution = letterID, solution
		return nil
	})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	if _, err := sink.Put(context.Background(), "letter-1", []byte("img")); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(srv.URL+"/challenges/letter-1/solution", "application/json",
		bytes.NewBufferString(`{"solution":"xkcd42"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if gotLetter != "letter-1" || gotSolution != "xkcd42" {
		t.Errorf("callback got (%q, %q)", gotLetter, gotSolution)
	}
	if len(sink.Pending()) != 0 {
		t.Error("accepted solution should clear the pending challenge")
	}
}

func TestPostSolutionValidation(t *testing.T) {
	c, sink := newTestConsole(t)
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/challenges/unknown/solution", "application/json",
		bytes.NewBufferString(`{"solution":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown letter status = %d, want 404", resp.StatusCode)
	}

	if _, err := sink.Put(context.Background(), "letter-1", []byte("img")); err != nil {
		t.Fatal(err)
	}
	resp, err = http.Post(srv.URL+"/challenges/letter-1/solution", "application/json",
		bytes.NewBufferString(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty solution status = %d, want 400", resp.StatusCode)
	}
}

func TestRejectedSolutionKeepsChallenge(t *testing.T) {
	c, sink := newTestConsole(t)
	c.SetOnSolution(func(context.Context, string, string) error {
		return fmt.Errorf("delivery still failing")
	})
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	if _, err := sink.Put(context.Background(), "letter-1", []byte("img")); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(srv.URL+"/challenges/letter-1/solution", "application/json",
		bytes.NewBufferString(`{"solution":"wrong"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("rejected solution status = %d, want 409", resp.StatusCode)
	}
	if len(sink.Pending()) != 1 {
		t.Error("rejected solution must keep the challenge pending")
	}
}
