package config

const (
	_etc = "/usr/local/etc/uhppoted"
	_var = "/usr/local/var/uhppoted"

	DEFAULT_WORKDIR     = _var + "/report"
	DEFAULT_CREDENTIALS = _etc + "/report/.google/credentials.json"
)
