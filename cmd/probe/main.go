// Command probe runs a scripted two-player handshake against a running
// Coinkick server and reports pass/fail. It drives the real client facade, so
// a green probe covers connect, room create/join, character selection, the
// ready handshake, and one position-update round trip.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coinkick/coinkick/client"
	"github.com/coinkick/coinkick/protocol"
)

var (
	serverURL = flag.String("url", "ws://localhost:5000/ws", "WebSocket URL of the server")
	timeout   = flag.Duration("timeout", 5*time.Second, "Per-step timeout")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime)

	if err := run(); err != nil {
		fmt.Printf("FAIL: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("PASS")
}

func run() error {
	ctx := context.Background()

	host := client.New(client.Options{URL: *serverURL})
	guest := client.New(client.Options{URL: *serverURL})
	defer host.Disconnect()
	defer guest.Disconnect()

	hostEvents := watch(host, protocol.TypeRoomCreated, protocol.TypePlayerJoined,
		protocol.TypeGameStart, protocol.TypeError)
	guestEvents := watch(guest, protocol.TypeRoomJoined, protocol.TypeGameStart,
		protocol.TypePositionUpdate, protocol.TypeError)

	if err := host.Connect(ctx); err != nil {
		return fmt.Errorf("host connect: %w", err)
	}
	if err := guest.Connect(ctx); err != nil {
		return fmt.Errorf("guest connect: %w", err)
	}

	// Create and join.
	if err := host.CreateRoom("probe-host", ""); err != nil {
		return err
	}
	env, err := await(hostEvents, protocol.TypeRoomCreated)
	if err != nil {
		return err
	}
	created, err := protocol.DecodePayload[protocol.RoomCreated](env)
	if err != nil {
		return err
	}
	log.Printf("room created: %s", created.RoomID)

	if err := guest.JoinRoom(created.RoomID, "probe-guest"); err != nil {
		return err
	}
	if _, err := await(guestEvents, protocol.TypeRoomJoined); err != nil {
		return err
	}
	if _, err := await(hostEvents, protocol.TypePlayerJoined); err != nil {
		return err
	}
	log.Printf("guest joined")

	// Characters, then ready up.
	if err := host.SelectCharacter("pepecoin"); err != nil {
		return err
	}
	if err := guest.SelectCharacter("dogecoin"); err != nil {
		return err
	}
	if err := host.SetReady(); err != nil {
		return err
	}
	if err := guest.SetReady(); err != nil {
		return err
	}
	startEnv, err := await(hostEvents, protocol.TypeGameStart)
	if err != nil {
		return err
	}
	start, err := protocol.DecodePayload[protocol.GameStart](startEnv)
	if err != nil {
		return err
	}
	if start.OpponentName != "probe-guest" {
		return fmt.Errorf("host game-start names %q, want probe-guest", start.OpponentName)
	}
	if _, err := await(guestEvents, protocol.TypeGameStart); err != nil {
		return err
	}
	log.Printf("game started")

	// One authoritative snapshot, host to guest.
	update := protocol.PositionUpdate{
		Player: protocol.PlayerState{X: 1, Y: 0, Z: 2, Rotation: 0.5},
		Ball:   &protocol.BallState{X: 3, Y: 1, Z: -2, VelocityX: 4},
	}
	if err := host.SendPositionUpdate(update); err != nil {
		return err
	}
	posEnv, err := await(guestEvents, protocol.TypePositionUpdate)
	if err != nil {
		return err
	}
	pos, err := protocol.DecodePayload[protocol.PositionUpdate](posEnv)
	if err != nil {
		return err
	}
	if pos.Ball == nil || pos.Ball.X != 3 {
		return fmt.Errorf("guest snapshot ball = %+v, want X=3", pos.Ball)
	}
	log.Printf("position round trip ok")

	return nil
}

// watch subscribes to the given event types and funnels them into one
// channel.
func watch(c *client.Client, types ...string) <-chan protocol.Envelope {
	ch := make(chan protocol.Envelope, 16)
	for _, t := range types {
		c.On(t, func(env protocol.Envelope) {
			select {
			case ch <- env:
			default:
			}
		})
	}
	return ch
}

// await reads events until the wanted type shows up. A protocol error or the
// step timeout fails the probe.
func await(ch <-chan protocol.Envelope, want string) (protocol.Envelope, error) {
	deadline := time.After(*timeout)
	for {
		select {
		case env := <-ch:
			if env.Type == protocol.TypeError {
				msg, _ := protocol.DecodePayload[protocol.Error](env)
				return env, fmt.Errorf("server error while waiting for %s: %s", want, msg.Message)
			}
			if env.Type == want {
				return env, nil
			}
		case <-deadline:
			return protocol.Envelope{}, fmt.Errorf("timed out waiting for %s", want)
		}
	}
}
