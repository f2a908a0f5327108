package auth

const BROWSER = "open"
