package command

import (
	"strconv"
	"time"

	"gokv/internal/resp"
	"gokv/internal/srvstate"
)

func init() {
	register("DEL", parseDel)
	register("EXISTS", parseExists)
	register("KEYS", parseKeys)
	register("DBSIZE", parseDBSize)
	register("RENAME", parseRename)
	register("TYPE", parseType)
	register("EXPIRE", parseExpire)
	register("PEXPIRE", parsePExpire)
	register("EXPIREAT", parseExpireAt)
	register("PEXPIREAT", parsePExpireAt)
	register("SELECT", parseSelect)
	register("SHUTDOWN", parseShutdown)
}

type cmdDel struct{ keys [][]byte }

func parseDel(p *Parser) (Command, error) {
	var keys [][]byte
	for p.HasNext() {
		k, _ := p.NextBulkOrSimple()
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, wrongArgs("del")
	}
	return cmdDel{keys: keys}, nil
}

func (c cmdDel) Apply(state *srvstate.State) Result {
	removed := 0
	var rewrite [][]string
	for _, k := range c.keys {
		if state.Store.Delete(string(k)) {
			removed++
			rewrite = append(rewrite, []string{"DEL", string(k)})
		}
	}
	res := Reply(resp.NewInteger(int64(removed)))
	if removed > 0 {
		res.Dirty = removed
		res.Rewrite = rewrite
	}
	return res
}

type cmdExists struct{ keys [][]byte }

func parseExists(p *Parser) (Command, error) {
	var keys [][]byte
	for p.HasNext() {
		k, _ := p.NextBulkOrSimple()
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, wrongArgs("exists")
	}
	return cmdExists{keys: keys}, nil
}

func (c cmdExists) Apply(state *srvstate.State) Result {
	count := 0
	for _, k := range c.keys {
		if state.Store.Contains(string(k)) {
			count++
		}
	}
	return Reply(resp.NewInteger(int64(count)))
}

type cmdKeys struct{ pattern string }

func parseKeys(p *Parser) (Command, error) {
	pat, ok := p.NextBulkOrSimple()
	if !ok {
		return nil, wrongArgs("keys")
	}
	return cmdKeys{pattern: string(pat)}, nil
}

func (c cmdKeys) Apply(state *srvstate.State) Result {
	keys := state.Store.Keys(c.pattern)
	elems := make([]resp.Frame, len(keys))
	for i, k := range keys {
		elems[i] = resp.NewBulkString(k)
	}
	return Reply(resp.NewArray(elems))
}

type cmdDBSize struct{}

func parseDBSize(p *Parser) (Command, error) { return cmdDBSize{}, nil }

func (c cmdDBSize) Apply(state *srvstate.State) Result {
	return Reply(resp.NewInteger(int64(state.Store.Len())))
}

type cmdRename struct{ oldKey, newKey []byte }

func parseRename(p *Parser) (Command, error) {
	if p.Remaining() != 2 {
		return nil, wrongArgs("rename")
	}
	oldKey, _ := p.NextBulkOrSimple()
	newKey, _ := p.NextBulkOrSimple()
	return cmdRename{oldKey: oldKey, newKey: newKey}, nil
}

func (c cmdRename) Apply(state *srvstate.State) Result {
	if !state.Store.Rename(string(c.oldKey), string(c.newKey)) {
		return Reply(resp.NewError("ERR no such key"))
	}
	return Result{
		Reply:   resp.NewSimple("OK"),
		Dirty:   1,
		Rewrite: [][]string{{"RENAME", string(c.oldKey), string(c.newKey)}},
	}
}

type cmdType struct{ key []byte }

func parseType(p *Parser) (Command, error) {
	k, ok := p.NextBulkOrSimple()
	if !ok {
		return nil, wrongArgs("type")
	}
	return cmdType{key: k}, nil
}

func (c cmdType) Apply(state *srvstate.State) Result {
	return Reply(resp.NewSimple(state.Store.Type(string(c.key))))
}

// expire family: EXPIRE/PEXPIRE take a relative duration, EXPIREAT/
// PEXPIREAT an absolute timestamp. All four funnel into one applier.

type cmdExpireLike struct {
	key      []byte
	amount   int64
	millis   bool
	absolute bool
}

func parseExpireLike(p *Parser, millis, absolute bool) (Command, error) {
	key, ok := p.NextBulkOrSimple()
	if !ok {
		return nil, ErrSyntax
	}
	n, ok, err := p.NextInteger()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSyntax
	}
	return cmdExpireLike{key: key, amount: n, millis: millis, absolute: absolute}, nil
}

func parseExpire(p *Parser) (Command, error)     { return parseExpireLike(p, false, false) }
func parsePExpire(p *Parser) (Command, error)    { return parseExpireLike(p, true, false) }
func parseExpireAt(p *Parser) (Command, error)   { return parseExpireLike(p, false, true) }
func parsePExpireAt(p *Parser) (Command, error)  { return parseExpireLike(p, true, true) }

func (c cmdExpireLike) Apply(state *srvstate.State) Result {
	var targetMs int64
	if c.absolute {
		if c.millis {
			targetMs = c.amount
		} else {
			targetMs = c.amount * 1000
		}
	} else {
		delta := c.amount
		if !c.millis {
			delta *= 1000
		}
		targetMs = time.Now().UnixMilli() + delta
	}

	if !state.Store.ExpireAtMillis(string(c.key), targetMs) {
		return Reply(resp.NewInteger(0))
	}
	return Result{
		Reply:   resp.NewInteger(1),
		Dirty:   1,
		Rewrite: [][]string{{"PEXPIREAT", string(c.key), strconv.FormatInt(targetMs, 10)}},
	}
}

type cmdSelect struct{ index int64 }

func parseSelect(p *Parser) (Command, error) {
	n, ok, err := p.NextInteger()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, wrongArgs("select")
	}
	return cmdSelect{index: n}, nil
}

func (c cmdSelect) Apply(_ *srvstate.State) Result {
	if c.index != 0 {
		return Reply(resp.NewError("ERR invalid DB index"))
	}
	return Reply(resp.NewSimple("OK"))
}

type cmdShutdown struct{}

func parseShutdown(p *Parser) (Command, error) { return cmdShutdown{}, nil }

func (c cmdShutdown) Apply(state *srvstate.State) Result {
	state.Shutdown()
	return Reply(resp.NewSimple("OK"))
}
