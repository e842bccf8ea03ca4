/*
Package cli provides the terminal side of localchat: the interactive chat
loop, thread listing formatters, signal helpers and command errors.

Chat:

Chat talks to the same OpenAI-compatible backends as the relay server and
decodes replies with the same relay.Consumer, but keeps its history in
memory only:

	term := cli.NewTerminal(cfg.CLI.HistoryFile)
	defer term.Close()

	chat, err := cli.NewChat(client, cli.ChatOptions{Relay: opts}, term, os.Stdout)
	if err != nil {
		return err
	}
	chat.Banner()
	return chat.Run(ctx)

Typing "new" clears the history and "exit" ends the session. Ctrl-C while a
reply is streaming cancels that reply only.

Output Formatting:

	formatter := cli.NewFormatter(cli.FormatCSV)
	if err := formatter.FormatTo(os.Stdout, threads); err != nil {
		return err
	}
*/
package cli
