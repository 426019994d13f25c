// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sweep walks a channel's history from newest to oldest and
// deletes every message written by one identity, one at a time.
package sweep

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/matta/chatsweep/internal/message"
	"github.com/matta/chatsweep/internal/wait"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

const (
	DefaultPageSize = 100

	// DefaultPace is the wait after every delete attempt.  It keeps a
	// sweep under the per-route delete limit without relying on 429s.
	DefaultPace = 1250 * time.Millisecond

	previewRunes = 50
)

// Options controls a sweep.  The zero value sweeps everything with the
// defaults above and discards progress output.
type Options struct {
	// Max caps the run; zero means no cap.  It is compared with
	// State.Processed before each page is fetched and with
	// State.Deleted before each delete.
	Max int

	PageSize int

	Pace time.Duration

	// Out receives human readable progress lines.
	Out io.Writer

	// Sleep waits for d of wall clock time, returning early with an
	// error if ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.Pace <= 0 {
		o.Pace = DefaultPace
	}
	if o.Out == nil {
		o.Out = io.Discard
	}
	if o.Sleep == nil {
		o.Sleep = wait.Sleep
	}
	return o
}

// State is the progress of a single channel sweep.
type State struct {
	Channel  string
	Identity message.Identity

	// Messages successfully deleted.
	Deleted int

	// Delete attempts that failed for a reason other than a rate
	// limit.
	Failed int

	// Messages scanned, including those by other authors.
	Processed int

	// ID of the oldest message seen so far; "" before the first page.
	Cursor string

	Max int
}

func (s *State) processedCapReached() bool {
	return s.Max > 0 && s.Processed >= s.Max
}

func (s *State) deletedCapReached() bool {
	return s.Max > 0 && s.Deleted >= s.Max
}

// advance moves the cursor past page, which must not be empty.
func (s *State) advance(page []message.Message) {
	s.Cursor = page[len(page)-1].ID
	s.Processed += len(page)
}

// Filter returns the messages of page written by id, in page order.
func Filter(page []message.Message, id message.Identity) []message.Message {
	var mine []message.Message
	for i := range page {
		if page[i].AuthoredBy(id) {
			mine = append(mine, page[i])
		}
	}
	return mine
}

// Run resolves the current identity and sweeps channel.  If the
// identity cannot be resolved no message is touched.
func Run(ctx context.Context, s MessageStorage, channel string, opts Options) (*State, error) {
	id, err := s.Me(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "unable to resolve identity")
	}
	return RunIdentity(ctx, s, id, channel, opts)
}

// RunIdentity sweeps channel on behalf of an already resolved identity.
//
// A page that cannot be fetched ends the sweep as if the start of the
// channel had been reached.  The returned State is never nil; when ctx
// is cancelled it holds the progress made so far alongside ctx.Err().
func RunIdentity(ctx context.Context, s ChannelStorage, id message.Identity, channel string, opts Options) (*State, error) {
	opts = opts.withDefaults()
	st := &State{Channel: channel, Identity: id, Max: opts.Max}
	fmt.Fprintf(opts.Out, "Starting deletion for user %s in channel %s\n", id.ID, channel)

	for !st.processedCapReached() {
		page, err := s.ListMessages(ctx, channel, opts.PageSize, st.Cursor)
		if err != nil {
			if ctx.Err() != nil {
				return st, ctx.Err()
			}
			log.Printf("Error fetching messages in channel %v, stopping: %v", channel, err)
			break
		}
		if len(page) == 0 {
			break
		}
		if err := deleteAll(ctx, s, st, Filter(page, id), opts); err != nil {
			return st, err
		}
		st.advance(page)
		fmt.Fprintf(opts.Out, "Processed %s messages, deleted %s so far...\n",
			humanize.Comma(int64(st.Processed)), humanize.Comma(int64(st.Deleted)))
	}
	return st, nil
}

// deleteAll deletes mine in order, pacing every attempt, until the
// delete cap is hit.  Only a done ctx stops it early.
func deleteAll(ctx context.Context, s MessageDeleter, st *State, mine []message.Message, opts Options) error {
	for i := range mine {
		if st.deletedCapReached() {
			break
		}
		msg := &mine[i]
		fmt.Fprintf(opts.Out, "Deleting message: %s (ID: %s, Time: %s)\n",
			msg.Preview(previewRunes), msg.ID, humanize.Time(msg.Timestamp))

		err := s.DeleteMessage(ctx, st.Channel, msg.ID)
		switch {
		case err == nil:
			st.Deleted++
			fmt.Fprintf(opts.Out, "✓ Deleted message %s\n", msg.ID)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			st.Failed++
			log.Printf("Failed to delete message %v: %v", msg.ID, err)
			fmt.Fprintf(opts.Out, "✗ Failed to delete message %s\n", msg.ID)
		}

		if err := opts.Sleep(ctx, opts.Pace); err != nil {
			return err
		}
	}
	return nil
}
