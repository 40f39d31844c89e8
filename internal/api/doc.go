// Package api serves the agent's local HTTP surface: a JSON mirror of the
// command bus, a server-sent-events stream of bus notifications, health
// checks and Prometheus metrics. Access is restricted to private subnets;
// the API is for the appliance's operators and co-resident agents, not the
// open network.
package api
