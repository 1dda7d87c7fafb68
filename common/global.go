package common

// AppName - The application name.
const AppName = "netcrawl"

// AppVersion - The application version.
const AppVersion = "0.1.0"

// AppAuthor - The application author.
const AppAuthor = "HON95"

// PrometheusNamespace - Prometheus metrics namespace.
const PrometheusNamespace = "netcrawl"
