package command

import (
	"gokv/internal/resp"
	"gokv/internal/srvstate"
)

func init() {
	register("PING", parsePing)
	register("ECHO", parseEcho)
	register("QUIT", parseQuit)
}

type cmdPing struct{ msg []byte }

func parsePing(p *Parser) (Command, error) {
	var cmd cmdPing
	if p.HasNext() {
		msg, _ := p.NextBulkOrSimple()
		cmd.msg = msg
	}
	return cmd, nil
}

func (c cmdPing) Apply(_ *srvstate.State) Result {
	if c.msg != nil {
		return Reply(resp.NewBulk(c.msg))
	}
	return Reply(resp.NewSimple("PONG"))
}

type cmdEcho struct{ msg []byte }

func parseEcho(p *Parser) (Command, error) {
	msg, ok := p.NextBulkOrSimple()
	if !ok {
		return nil, wrongArgs("echo")
	}
	return cmdEcho{msg: msg}, nil
}

func (c cmdEcho) Apply(_ *srvstate.State) Result {
	return Reply(resp.NewBulk(c.msg))
}

type cmdQuit struct{}

func parseQuit(p *Parser) (Command, error) {
	return cmdQuit{}, nil
}

func (c cmdQuit) Apply(state *srvstate.State) Result {
	state.Shutdown()
	return Reply(resp.NewSimple("OK"))
}
