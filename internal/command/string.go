package command

import (
	"strconv"
	"strings"
	"time"

	"gokv/internal/resp"
	"gokv/internal/srvstate"
	"gokv/internal/store"
	"gokv/internal/value"
)

func init() {
	register("GET", parseGet)
	register("SET", parseSet)
	register("SETNX", parseSetNX)
	register("APPEND", parseAppend)
	register("STRLEN", parseStrlen)
	register("INCR", parseIncr)
	register("DECR", parseDecr)
	register("INCRBY", parseIncrBy)
	register("DECRBY", parseDecrBy)
}

const maxStringLen = resp.MaxBulkLen

type cmdGet struct{ key []byte }

func parseGet(p *Parser) (Command, error) {
	key, ok := p.NextBulkOrSimple()
	if !ok {
		return nil, wrongArgs("get")
	}
	return cmdGet{key: key}, nil
}

func (c cmdGet) Apply(state *srvstate.State) Result {
	v, ok := state.Store.Get(string(c.key))
	if !ok {
		return Reply(resp.NewNull())
	}
	if v.Kind != value.KindString {
		return Reply(resp.NewError(store.ErrWrongType.Error()))
	}
	return Reply(resp.NewBulk(v.Str))
}

// cmdSet implements SET key value [NX|XX] [EX sec|PX ms]. The two
// existence flags are mutually exclusive, as are the two expiry
// flags; the original distinguishes flag case, this build accepts
// either case to match CONFIG's own case-insensitive key handling.
type cmdSet struct {
	key, val       []byte
	nx, xx         bool
	expireAtMillis *int64
}

func parseSet(p *Parser) (Command, error) {
	key, ok := p.NextBulkOrSimple()
	if !ok {
		return nil, wrongArgs("set")
	}
	val, ok := p.NextBulkOrSimple()
	if !ok {
		return nil, wrongArgs("set")
	}
	if len(val) > maxStringLen {
		return nil, ErrSyntax
	}

	c := cmdSet{key: key, val: val}
	for p.HasNext() {
		tok, _ := p.NextBulkOrSimple()
		switch strings.ToUpper(string(tok)) {
		case "NX":
			if c.xx {
				return nil, ErrSyntax
			}
			c.nx = true
		case "XX":
			if c.nx {
				return nil, ErrSyntax
			}
			c.xx = true
		case "EX", "PX":
			if c.expireAtMillis != nil {
				return nil, ErrSyntax
			}
			n, ok, err := p.NextInteger()
			if err != nil {
				return nil, err
			}
			if !ok || n <= 0 {
				return nil, ErrSyntax
			}
			delta := n
			if strings.ToUpper(string(tok)) == "EX" {
				delta *= 1000
			}
			ms := time.Now().UnixMilli() + delta
			c.expireAtMillis = &ms
		default:
			return nil, ErrSyntax
		}
	}
	return c, nil
}

func (c cmdSet) Apply(state *srvstate.State) Result {
	key := string(c.key)
	val := value.NewString(c.val)

	// The conditional variants decide and write under one shard-lock
	// hold; a Contains-then-Set pair would let two concurrent NX
	// writers both observe the key as absent.
	switch {
	case c.nx:
		if !state.Store.SetIfAbsent(key, val, c.expireAtMillis) {
			return Reply(resp.NewNull())
		}
	case c.xx:
		if !state.Store.SetIfPresent(key, val, c.expireAtMillis) {
			return Reply(resp.NewNull())
		}
	default:
		state.Store.Set(key, val, c.expireAtMillis)
	}

	rewrite := [][]string{{"SET", string(c.key), string(c.val)}}
	if c.expireAtMillis != nil {
		rewrite = append(rewrite, []string{"PEXPIREAT", string(c.key), strconv.FormatInt(*c.expireAtMillis, 10)})
	}
	return Result{Reply: resp.NewSimple("OK"), Dirty: 1, Rewrite: rewrite}
}

type cmdSetNX struct{ key, val []byte }

func parseSetNX(p *Parser) (Command, error) {
	if p.Remaining() != 2 {
		return nil, wrongArgs("setnx")
	}
	key, _ := p.NextBulkOrSimple()
	val, _ := p.NextBulkOrSimple()
	return cmdSetNX{key: key, val: val}, nil
}

func (c cmdSetNX) Apply(state *srvstate.State) Result {
	if !state.Store.SetIfAbsent(string(c.key), value.NewString(c.val), nil) {
		return Reply(resp.NewInteger(0))
	}
	return Result{
		Reply:   resp.NewInteger(1),
		Dirty:   1,
		Rewrite: [][]string{{"SET", string(c.key), string(c.val)}},
	}
}

type cmdAppend struct{ key, val []byte }

func parseAppend(p *Parser) (Command, error) {
	if p.Remaining() != 2 {
		return nil, wrongArgs("append")
	}
	key, _ := p.NextBulkOrSimple()
	val, _ := p.NextBulkOrSimple()
	return cmdAppend{key: key, val: val}, nil
}

func (c cmdAppend) Apply(state *srvstate.State) Result {
	var newLen int
	result, err := state.Store.Apply(string(c.key), func(cur *value.Value, exists bool) (*value.Value, bool, error) {
		if !exists {
			if len(c.val) > maxStringLen {
				return nil, false, ErrSyntax
			}
			newLen = len(c.val)
			return value.NewString(append([]byte(nil), c.val...)), false, nil
		}
		if cur.Kind != value.KindString {
			return nil, false, store.ErrWrongType
		}
		if len(cur.Str)+len(c.val) > maxStringLen {
			return nil, false, ErrSyntax
		}
		cur.Str = append(cur.Str, c.val...)
		newLen = len(cur.Str)
		return cur, false, nil
	})
	if err != nil {
		return Reply(resp.NewError(err.Error()))
	}
	_ = result
	return Result{
		Reply:   resp.NewInteger(int64(newLen)),
		Dirty:   1,
		Rewrite: [][]string{{"APPEND", string(c.key), string(c.val)}},
	}
}

type cmdStrlen struct{ key []byte }

func parseStrlen(p *Parser) (Command, error) {
	key, ok := p.NextBulkOrSimple()
	if !ok {
		return nil, wrongArgs("strlen")
	}
	return cmdStrlen{key: key}, nil
}

func (c cmdStrlen) Apply(state *srvstate.State) Result {
	v, ok := state.Store.Get(string(c.key))
	if !ok {
		return Reply(resp.NewInteger(0))
	}
	if v.Kind != value.KindString {
		return Reply(resp.NewError(store.ErrWrongType.Error()))
	}
	return Reply(resp.NewInteger(int64(len(v.Str))))
}

// incrBy is shared by INCR, DECR, INCRBY and DECRBY: each is just a
// different fixed or parsed delta applied to the same atomic
// read-modify-write.
func incrBy(state *srvstate.State, key []byte, delta int64) Result {
	var newVal int64
	result, err := state.Store.Apply(string(key), func(cur *value.Value, exists bool) (*value.Value, bool, error) {
		if !exists {
			newVal = delta
			return value.NewString([]byte(strconv.FormatInt(newVal, 10))), false, nil
		}
		if cur.Kind != value.KindString {
			return nil, false, store.ErrWrongType
		}
		n, ok := cur.IsInteger()
		if !ok {
			return nil, false, store.ErrNotInteger
		}
		newVal = n + delta
		cur.Str = []byte(strconv.FormatInt(newVal, 10))
		return cur, false, nil
	})
	if err != nil {
		return Reply(resp.NewError(err.Error()))
	}
	_ = result
	return Result{
		Reply:   resp.NewInteger(newVal),
		Dirty:   1,
		Rewrite: [][]string{{"SET", string(key), strconv.FormatInt(newVal, 10)}},
	}
}

type cmdIncr struct{ key []byte }

func parseIncr(p *Parser) (Command, error) {
	key, ok := p.NextBulkOrSimple()
	if !ok {
		return nil, wrongArgs("incr")
	}
	return cmdIncr{key: key}, nil
}

func (c cmdIncr) Apply(state *srvstate.State) Result { return incrBy(state, c.key, 1) }

type cmdDecr struct{ key []byte }

func parseDecr(p *Parser) (Command, error) {
	key, ok := p.NextBulkOrSimple()
	if !ok {
		return nil, wrongArgs("decr")
	}
	return cmdDecr{key: key}, nil
}

func (c cmdDecr) Apply(state *srvstate.State) Result { return incrBy(state, c.key, -1) }

type cmdIncrBy struct {
	key   []byte
	delta int64
}

func parseIncrBy(p *Parser) (Command, error) {
	key, ok := p.NextBulkOrSimple()
	if !ok {
		return nil, wrongArgs("incrby")
	}
	n, ok, err := p.NextInteger()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, wrongArgs("incrby")
	}
	return cmdIncrBy{key: key, delta: n}, nil
}

func (c cmdIncrBy) Apply(state *srvstate.State) Result { return incrBy(state, c.key, c.delta) }

type cmdDecrBy struct {
	key   []byte
	delta int64
}

func parseDecrBy(p *Parser) (Command, error) {
	key, ok := p.NextBulkOrSimple()
	if !ok {
		return nil, wrongArgs("decrby")
	}
	n, ok, err := p.NextInteger()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, wrongArgs("decrby")
	}
	return cmdDecrBy{key: key, delta: n}, nil
}

func (c cmdDecrBy) Apply(state *srvstate.State) Result { return incrBy(state, c.key, -c.delta) }
