package dispatcher

// CommandExecutor runs real processes.
var CommandExecutor Executor = commandExecutor{}
