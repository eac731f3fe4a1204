package command

import (
	"gokv/internal/resp"
	"gokv/internal/srvstate"
	"gokv/internal/store"
	"gokv/internal/value"
)

func init() {
	register("SADD", parseSAdd)
	register("SREM", parseSRem)
}

type cmdSAdd struct {
	key     []byte
	members [][]byte
}

func parseSAdd(p *Parser) (Command, error) {
	key, ok := p.NextBulkOrSimple()
	if !ok {
		return nil, ErrSyntax
	}
	var members [][]byte
	for p.HasNext() {
		m, _ := p.NextBulkOrSimple()
		members = append(members, m)
	}
	if len(members) == 0 {
		return nil, wrongArgs("sadd")
	}
	return cmdSAdd{key: key, members: members}, nil
}

func (c cmdSAdd) Apply(state *srvstate.State) Result {
	var added int
	_, err := state.Store.Apply(string(c.key), func(cur *value.Value, exists bool) (*value.Value, bool, error) {
		if !exists {
			cur = value.NewSet()
		} else if cur.Kind != value.KindSet {
			return nil, false, store.ErrWrongType
		}
		for _, m := range c.members {
			if _, had := cur.Set[string(m)]; !had {
				added++
				cur.Set[string(m)] = struct{}{}
			}
		}
		return cur, false, nil
	})
	if err != nil {
		return Reply(resp.NewError(err.Error()))
	}
	if added == 0 {
		return Reply(resp.NewInteger(0))
	}

	args := append([]string{"SADD", string(c.key)}, bytesToStrings(c.members)...)
	return Result{
		Reply:   resp.NewInteger(int64(added)),
		Dirty:   1,
		Rewrite: [][]string{args},
	}
}

type cmdSRem struct {
	key     []byte
	members [][]byte
}

func parseSRem(p *Parser) (Command, error) {
	key, ok := p.NextBulkOrSimple()
	if !ok {
		return nil, ErrSyntax
	}
	var members [][]byte
	for p.HasNext() {
		m, _ := p.NextBulkOrSimple()
		members = append(members, m)
	}
	if len(members) == 0 {
		return nil, wrongArgs("srem")
	}
	return cmdSRem{key: key, members: members}, nil
}

func (c cmdSRem) Apply(state *srvstate.State) Result {
	var removed int
	_, err := state.Store.Apply(string(c.key), func(cur *value.Value, exists bool) (*value.Value, bool, error) {
		if !exists {
			return nil, false, nil
		}
		if cur.Kind != value.KindSet {
			return nil, false, store.ErrWrongType
		}
		for _, m := range c.members {
			if _, had := cur.Set[string(m)]; had {
				removed++
				delete(cur.Set, string(m))
			}
		}
		if len(cur.Set) == 0 {
			return nil, true, nil
		}
		return cur, false, nil
	})
	if err != nil {
		return Reply(resp.NewError(err.Error()))
	}
	if removed == 0 {
		return Reply(resp.NewInteger(0))
	}

	args := append([]string{"SREM", string(c.key)}, bytesToStrings(c.members)...)
	return Result{
		Reply:   resp.NewInteger(int64(removed)),
		Dirty:   1,
		Rewrite: [][]string{args},
	}
}
