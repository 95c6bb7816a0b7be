// Command ditty-watch draws the spectrum streamed by a ditty server in the
// terminal.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dittyapp/ditty/internal/render"
	"github.com/dittyapp/ditty/pkg/spectrum"
	"github.com/dittyapp/ditty/pkg/web"
)

type frame struct {
	Bands []float64 `json:"bands"`
	State string    `json:"state"`
	Time  int64     `json:"time"`
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8765", "ditty server address")
	width := flag.Int("width", 64, "bars to draw")
	height := flag.Int("height", 12, "rows to draw")
	retry := flag.Duration("retry", 2*time.Second, "reconnect interval")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws/spectrum"}
	if *width >= web.MinBars && *width <= web.MaxBars {
		// let the server downsample
		u.RawQuery = url.Values{"bars": {strconv.Itoa(*width)}}.Encode()
	}
	out := bufio.NewWriter(os.Stdout)

	for {
		err := watch(ctx, u.String(), out, *width, *height)
		if ctx.Err() != nil {
			fmt.Println("\n👋 bye")
			return
		}
		log.Printf("⚠️  %v, retrying in %v", err, *retry)
		select {
		case <-ctx.Done():
			return
		case <-time.After(*retry):
		}
	}
}

// watch draws frames from one websocket connection until it fails or ctx ends.
func watch(ctx context.Context, target string, out *bufio.Writer, width, height int) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", target, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		case <-done:
		}
	}()

	var f frame
	var bars spectrum.Frame
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}

		bars = spectrum.Downsample(bars, f.Bands, width)
		out.WriteString("\033[H\033[2J")
		for _, row := range render.Columns(bars, height) {
			out.WriteString(row)
			out.WriteByte('\n')
		}
		fmt.Fprintf(out, "%s  %d bands  %s\n", f.State, len(f.Bands),
			time.UnixMilli(f.Time).Format("15:04:05.000"))
		out.Flush()
	}
}
