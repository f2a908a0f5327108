package auth

const BROWSER = "xdg-open"
