package command

import (
	"gokv/internal/resp"
	"gokv/internal/srvstate"
	"gokv/internal/store"
	"gokv/internal/value"
)

func init() {
	register("LPUSH", parseLPush)
	register("RPUSH", parseRPush)
	register("LPOP", parseLPop)
	register("RPOP", parseRPop)
}

type cmdPush struct {
	key    []byte
	vals   [][]byte
	left   bool
}

func parsePushLike(p *Parser, left bool) (Command, error) {
	key, ok := p.NextBulkOrSimple()
	if !ok {
		return nil, ErrSyntax
	}
	var vals [][]byte
	for p.HasNext() {
		v, _ := p.NextBulkOrSimple()
		vals = append(vals, v)
	}
	if len(vals) == 0 {
		return nil, ErrSyntax
	}
	return cmdPush{key: key, vals: vals, left: left}, nil
}

func parseLPush(p *Parser) (Command, error) { return parsePushLike(p, true) }
func parseRPush(p *Parser) (Command, error) { return parsePushLike(p, false) }

func (c cmdPush) Apply(state *srvstate.State) Result {
	var newLen int
	_, err := state.Store.Apply(string(c.key), func(cur *value.Value, exists bool) (*value.Value, bool, error) {
		if !exists {
			cur = value.NewList()
		} else if cur.Kind != value.KindList {
			return nil, false, store.ErrWrongType
		}
		for _, v := range c.vals {
			if c.left {
				cur.List = append([][]byte{v}, cur.List...)
			} else {
				cur.List = append(cur.List, v)
			}
		}
		newLen = len(cur.List)
		return cur, false, nil
	})
	if err != nil {
		return Reply(resp.NewError(err.Error()))
	}

	name := "RPUSH"
	if c.left {
		name = "LPUSH"
	}
	args := append([]string{name, string(c.key)}, bytesToStrings(c.vals)...)
	return Result{
		Reply:   resp.NewInteger(int64(newLen)),
		Dirty:   1,
		Rewrite: [][]string{args},
	}
}

type cmdPop struct {
	key  []byte
	left bool
}

func parsePopLike(p *Parser, left bool) (Command, error) {
	key, ok := p.NextBulkOrSimple()
	if !ok {
		return nil, ErrSyntax
	}
	return cmdPop{key: key, left: left}, nil
}

func parseLPop(p *Parser) (Command, error) { return parsePopLike(p, true) }
func parseRPop(p *Parser) (Command, error) { return parsePopLike(p, false) }

func (c cmdPop) Apply(state *srvstate.State) Result {
	var popped []byte
	var ok bool
	_, err := state.Store.Apply(string(c.key), func(cur *value.Value, exists bool) (*value.Value, bool, error) {
		if !exists {
			return nil, false, nil
		}
		if cur.Kind != value.KindList {
			return nil, false, store.ErrWrongType
		}
		if len(cur.List) == 0 {
			return nil, true, nil
		}
		if c.left {
			popped, ok = cur.List[0], true
			cur.List = cur.List[1:]
		} else {
			last := len(cur.List) - 1
			popped, ok = cur.List[last], true
			cur.List = cur.List[:last]
		}
		if len(cur.List) == 0 {
			return nil, true, nil
		}
		return cur, false, nil
	})
	if err != nil {
		return Reply(resp.NewError(err.Error()))
	}
	if !ok {
		return Reply(resp.NewNull())
	}

	name := "RPOP"
	if c.left {
		name = "LPOP"
	}
	return Result{
		Reply:   resp.NewBulk(popped),
		Dirty:   1,
		Rewrite: [][]string{{name, string(c.key)}},
	}
}

func bytesToStrings(bs [][]byte) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = string(b)
	}
	return out
}
