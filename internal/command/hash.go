package command

import (
	"gokv/internal/resp"
	"gokv/internal/srvstate"
	"gokv/internal/store"
	"gokv/internal/value"
)

func init() {
	register("HSET", parseHSet)
	register("HGET", parseHGet)
}

type cmdHSet struct {
	key    []byte
	fields [][2][]byte
}

func parseHSet(p *Parser) (Command, error) {
	key, ok := p.NextBulkOrSimple()
	if !ok {
		return nil, ErrSyntax
	}
	if p.Remaining() == 0 || p.Remaining()%2 != 0 {
		return nil, wrongArgs("hset")
	}
	var fields [][2][]byte
	for p.HasNext() {
		f, _ := p.NextBulkOrSimple()
		v, _ := p.NextBulkOrSimple()
		fields = append(fields, [2][]byte{f, v})
	}
	return cmdHSet{key: key, fields: fields}, nil
}

func (c cmdHSet) Apply(state *srvstate.State) Result {
	var added int
	_, err := state.Store.Apply(string(c.key), func(cur *value.Value, exists bool) (*value.Value, bool, error) {
		if !exists {
			cur = value.NewHash()
		} else if cur.Kind != value.KindHash {
			return nil, false, store.ErrWrongType
		}
		for _, fv := range c.fields {
			if _, had := cur.Hash[string(fv[0])]; !had {
				added++
			}
			cur.Hash[string(fv[0])] = fv[1]
		}
		return cur, false, nil
	})
	if err != nil {
		return Reply(resp.NewError(err.Error()))
	}

	args := []string{"HSET", string(c.key)}
	for _, fv := range c.fields {
		args = append(args, string(fv[0]), string(fv[1]))
	}
	return Result{
		Reply:   resp.NewInteger(int64(added)),
		Dirty:   1,
		Rewrite: [][]string{args},
	}
}

type cmdHGet struct {
	key, field []byte
}

func parseHGet(p *Parser) (Command, error) {
	if p.Remaining() != 2 {
		return nil, wrongArgs("hget")
	}
	key, _ := p.NextBulkOrSimple()
	field, _ := p.NextBulkOrSimple()
	return cmdHGet{key: key, field: field}, nil
}

func (c cmdHGet) Apply(state *srvstate.State) Result {
	v, ok := state.Store.Get(string(c.key))
	if !ok {
		return Reply(resp.NewNull())
	}
	if v.Kind != value.KindHash {
		return Reply(resp.NewError(store.ErrWrongType.Error()))
	}
	val, ok := v.Hash[string(c.field)]
	if !ok {
		return Reply(resp.NewNull())
	}
	return Reply(resp.NewBulk(val))
}
