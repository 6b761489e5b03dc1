package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/englishprofesor/tutor-bot/internal/domain/conversation"
)

// ConversationStore implements conversation.Store.
//
// Layout per thread:
//
//	conv:{id}:system    string  - инструкция (system message)
//	conv:{id}:messages  list    - JSON сообщения user/assistant, не длиннее MaxThreadMessages
//	conv:{id}:users     counter - всего сообщений ученика за всё время
type ConversationStore struct {
	cache *Cache
}

// NewConversationStore creates a new ConversationStore.
func NewConversationStore(cache *Cache) *ConversationStore {
	return &ConversationStore{cache: cache}
}

// Load assembles the thread from its three keys.
func (s *ConversationStore) Load(ctx context.Context, threadID string) (*conversation.Thread, error) {
	pipe := s.cache.client.Pipeline()
	sysCmd := pipe.Get(ctx, ConversationKey(threadID, "system"))
	listCmd := pipe.LRange(ctx, ConversationKey(threadID, "messages"), 0, -1)
	usersCmd := pipe.Get(ctx, ConversationKey(threadID, "users"))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load thread %s: %w", threadID, err)
	}

	system, err := sysCmd.Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	users, err := usersCmd.Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	raw, err := listCmd.Result()
	if err != nil {
		return nil, err
	}

	return assembleThread(threadID, system, raw, users)
}

// Append pushes messages, trims the list and bumps the user counter atomically.
func (s *ConversationStore) Append(ctx context.Context, threadID string, msgs ...conversation.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	sysKey := ConversationKey(threadID, "system")
	listKey := ConversationKey(threadID, "messages")
	usersKey := ConversationKey(threadID, "users")

	_, err := s.cache.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pushed := false
		for _, m := range msgs {
			if m.Role == conversation.RoleSystem {
				pipe.Set(ctx, sysKey, m.Content, TTLConversation)
				continue
			}
			data, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
			}
			pipe.RPush(ctx, listKey, data)
			pushed = true
			if m.Role == conversation.RoleUser {
				pipe.Incr(ctx, usersKey)
			}
		}
		if pushed {
			pipe.LTrim(ctx, listKey, -conversation.MaxThreadMessages, -1)
		}
		for _, k := range []string{sysKey, listKey, usersKey} {
			pipe.Expire(ctx, k, TTLConversation)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append to thread %s: %w", threadID, err)
	}
	return nil
}

// Reset drops the thread.
func (s *ConversationStore) Reset(ctx context.Context, threadID string) error {
	return s.cache.Delete(ctx,
		ConversationKey(threadID, "system"),
		ConversationKey(threadID, "messages"),
		ConversationKey(threadID, "users"),
	)
}

// assembleThread decodes the stored parts. Corrupt list entries are skipped.
func assembleThread(threadID, system string, raw []string, users string) (*conversation.Thread, error) {
	t := &conversation.Thread{ID: threadID}
	if system != "" {
		t.Messages = append(t.Messages, conversation.Message{Role: conversation.RoleSystem, Content: system})
	}
	for _, r := range raw {
		var m conversation.Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			continue
		}
		t.Messages = append(t.Messages, m)
	}

	if users != "" {
		n, err := strconv.Atoi(users)
		if err != nil {
			return nil, fmt.Errorf("%w: users counter %q", ErrCacheSerialization, users)
		}
		t.UserMessages = n
	} else {
		t.UserMessages = conversation.CountUserMessages(t.Messages)
	}
	return t, nil
}
