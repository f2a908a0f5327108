package config

const (
	_etc = "/usr/local/etc/com.github.uhppoted"
	_var = "/usr/local/var/com.github.uhppoted"

	DEFAULT_WORKDIR     = _var + "/report"
	DEFAULT_CREDENTIALS = _etc + "/report/.google/credentials.json"
)
