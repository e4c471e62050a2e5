// Package redis implements store.Store on Redis. Executions are stored as
// Hashes, the due schedule is a Sorted Set scored by wake time, history is a
// List per execution, and events ride a Stream per name. Claim and complete
// run as Lua scripts so the step token check-and-set is atomic across
// steppers in different processes.
//
// The caller owns the Redis client lifecycle — the store never closes it:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis
