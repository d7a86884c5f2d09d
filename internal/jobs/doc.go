// Package jobs contains the built-in job handlers: article generation,
// source fetching, image optimization, and analytics rollups. Each handler
// implements queue.Handler for one job type and stays decoupled from
// providers through small collaborator interfaces.
package jobs
