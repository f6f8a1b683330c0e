package meetup

// Versioned external-protocol constants. The persisted-query hash and the
// transient rejection code belong to the remote API's contract, not to the
// booking logic; both can be overridden via config when the API rolls them.

// DefaultRSVPQueryHash identifies the persisted rsvpToEvent mutation.
const DefaultRSVPQueryHash = "d73f3044c4ef90143cb5f1380f7c665a295a997a14a9a21f345a288f55d9cee8"

// CodeTooFewSpots is the rejection code the API returns while registration
// has not opened yet or capacity is exhausted. It is the only code worth
// retrying; everything else ends an attempt loop.
const CodeTooFewSpots = "too_few_spots"

// upcomingEventsQuery lists the next scheduled events of a group.
const upcomingEventsQuery = `
query ($urlname: String!) {
  groupByUrlname(urlname: $urlname) {
    events(first: 25) {
      edges {
        node { id title dateTime }
      }
    }
  }
}`
