package command

import (
	"path/filepath"
	"strings"

	"gokv/internal/aof"
	"gokv/internal/persistence"
	"gokv/internal/resp"
	"gokv/internal/srvstate"
)

func init() {
	register("CONFIG", parseConfig)
	register("SAVE", parseSave)
	register("BGSAVE", parseBGSave)
	register("BGREWRITEAOF", parseBGRewriteAOF)
}

type cmdConfig struct {
	sub  string
	args [][]byte
}

func parseConfig(p *Parser) (Command, error) {
	sub, ok := p.NextBulkOrSimple()
	if !ok {
		return nil, wrongArgs("config")
	}
	var rest [][]byte
	for p.HasNext() {
		a, _ := p.NextBulkOrSimple()
		rest = append(rest, a)
	}
	return cmdConfig{sub: strings.ToUpper(string(sub)), args: rest}, nil
}

func (c cmdConfig) Apply(state *srvstate.State) Result {
	switch c.sub {
	case "GET":
		if len(c.args) != 1 {
			return Reply(resp.NewError(wrongArgs("config|get").Error()))
		}
		val, ok := state.Config.Get(string(c.args[0]))
		if !ok {
			return Reply(resp.NewArray(nil))
		}
		return Reply(resp.NewArray([]resp.Frame{
			resp.NewBulkString(strings.ToLower(string(c.args[0]))),
			resp.NewBulkString(val),
		}))
	case "SET":
		if len(c.args) != 2 {
			return Reply(resp.NewError(wrongArgs("config|set").Error()))
		}
		if err := state.Config.Set(string(c.args[0]), string(c.args[1])); err != nil {
			return Reply(resp.NewError("ERR " + err.Error()))
		}
		return Reply(resp.NewSimple("OK"))
	case "RESETSTAT", "REWRITE":
		// No stats registry and no live config file to rewrite in this
		// build; both are accepted as a no-op so clients scripting the
		// full CONFIG surface don't fail.
		return Reply(resp.NewSimple("OK"))
	default:
		return Reply(resp.NewError("ERR Unknown CONFIG subcommand"))
	}
}

type cmdSave struct{}

func parseSave(p *Parser) (Command, error) { return cmdSave{}, nil }

func (c cmdSave) Apply(state *srvstate.State) Result {
	if state.IsRDBChildActive() {
		return Reply(resp.NewError("ERR background save is running"))
	}
	path := rdbPath(state)
	if err := persistence.SaveSync(state, path); err != nil {
		return Reply(resp.NewError("ERR " + err.Error()))
	}
	return Reply(resp.NewSimple("OK"))
}

type cmdBGSave struct{}

func parseBGSave(p *Parser) (Command, error) { return cmdBGSave{}, nil }

func (c cmdBGSave) Apply(state *srvstate.State) Result {
	path := rdbPath(state)
	if err := persistence.BGSave(state, path); err != nil {
		return Reply(resp.NewError(err.Error()))
	}
	return Reply(resp.NewSimple("Background saving started"))
}

type cmdBGRewriteAOF struct{}

func parseBGRewriteAOF(p *Parser) (Command, error) { return cmdBGRewriteAOF{}, nil }

func (c cmdBGRewriteAOF) Apply(state *srvstate.State) Result {
	path := aofPath(state)
	if err := persistence.BGRewriteAOF(state, path); err != nil {
		return Reply(resp.NewError(err.Error()))
	}
	return Reply(resp.NewSimple("Background append only file rewriting started"))
}

func rdbPath(state *srvstate.State) string {
	val, _ := state.Config.Get("dbfilename")
	return filepath.Join(".", val)
}

func aofPath(state *srvstate.State) string {
	return filepath.Join(".", aof.DefaultPath)
}
