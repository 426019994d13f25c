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

package sweep

import (
	"context"

	"github.com/matta/chatsweep/internal/message"
)

// IdentityResolver resolves the principal behind the credential in use.
type IdentityResolver interface {
	Me(ctx context.Context) (message.Identity, error)
}

// MessageLister lists one page of a channel's history, newest first,
// older than the message before.  An empty before means the most
// recent page.
type MessageLister interface {
	ListMessages(ctx context.Context, channel string, limit int, before string) ([]message.Message, error)
}

// MessageDeleter deletes a single message.  Implementations deal with
// server rate limits themselves; an error means the message was not
// deleted.
type MessageDeleter interface {
	DeleteMessage(ctx context.Context, channel, id string) error
}

// ChannelStorage is what a sweep of one channel needs once the
// identity is known.
type ChannelStorage interface {
	MessageLister
	MessageDeleter
}

// MessageStorage provides all possible actions available to deal with
// message storage.
type MessageStorage interface {
	IdentityResolver
	ChannelStorage
}
