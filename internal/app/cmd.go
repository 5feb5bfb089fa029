package app

// Command はバイナリの起動モード。os.Args[1]で選ぶ。
type Command string

const (
	CommandServe   Command = "serve"
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はdistrolessイメージのHEALTHCHECK用。設定を読まずに/healthを叩く。
	CommandHealthcheck Command = "healthcheck"
)

var commands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand は先頭の引数をCommandに変換する。空や未知の値はserveとみなす。
func ParseCommand(args []string) Command {
	if len(args) > 0 {
		if cmd, ok := commands[args[0]]; ok {
			return cmd
		}
	}
	return CommandServe
}
