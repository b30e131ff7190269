package badges

import "tourneykit/core"

const (
	FirstTournament   core.BadgeID = "first_tournament"
	TournamentVeteran core.BadgeID = "tournament_veteran"
	TournamentMaster  core.BadgeID = "tournament_master"
	FirstVictory      core.BadgeID = "first_victory"
	Champion          core.BadgeID = "champion"
	Legend            core.BadgeID = "legend"
	Organizer         core.BadgeID = "organizer"
	EventMaster       core.BadgeID = "event_master"
	Earner            core.BadgeID = "earner"
	BigEarner         core.BadgeID = "big_earner"
)

// DefaultRules is the platform badge table. Thresholds are inclusive and
// cumulative: reaching a higher tier keeps the lower ones.
var DefaultRules = []core.BadgeRule{
	{
		Info:     core.BadgeInfo{ID: FirstTournament, DisplayName: "First Tournament", Description: "Joined your first tournament", Category: core.CategoryParticipation},
		Eligible: core.AtLeast(core.StatTournamentsJoined, 1),
	},
	{
		Info:     core.BadgeInfo{ID: TournamentVeteran, DisplayName: "Tournament Veteran", Description: "Joined 5 tournaments", Category: core.CategoryParticipation},
		Eligible: core.AtLeast(core.StatTournamentsJoined, 5),
	},
	{
		Info:     core.BadgeInfo{ID: TournamentMaster, DisplayName: "Tournament Master", Description: "Joined 10 tournaments", Category: core.CategoryParticipation},
		Eligible: core.AtLeast(core.StatTournamentsJoined, 10),
	},
	{
		Info:     core.BadgeInfo{ID: FirstVictory, DisplayName: "First Victory", Description: "Won your first tournament", Category: core.CategoryVictory},
		Eligible: core.AtLeast(core.StatTournamentsWon, 1),
	},
	{
		Info:     core.BadgeInfo{ID: Champion, DisplayName: "Champion", Description: "Won 3 tournaments", Category: core.CategoryVictory},
		Eligible: core.AtLeast(core.StatTournamentsWon, 3),
	},
	{
		Info:     core.BadgeInfo{ID: Legend, DisplayName: "Legend", Description: "Won 5 tournaments", Category: core.CategoryVictory},
		Eligible: core.AtLeast(core.StatTournamentsWon, 5),
	},
	{
		Info:     core.BadgeInfo{ID: Organizer, DisplayName: "Organizer", Description: "Created your first tournament", Category: core.CategoryOrganizing},
		Eligible: core.AtLeast(core.StatTournamentsCreated, 1),
	},
	{
		Info:     core.BadgeInfo{ID: EventMaster, DisplayName: "Event Master", Description: "Created 5 tournaments", Category: core.CategoryOrganizing},
		Eligible: core.AtLeast(core.StatTournamentsCreated, 5),
	},
	{
		Info:     core.BadgeInfo{ID: Earner, DisplayName: "Earner", Description: "Earned 1,000 in prize money", Category: core.CategoryEarnings},
		Eligible: core.EarningsAtLeast(1000),
	},
	{
		Info:     core.BadgeInfo{ID: BigEarner, DisplayName: "Big Earner", Description: "Earned 5,000 in prize money", Category: core.CategoryEarnings},
		Eligible: core.EarningsAtLeast(5000),
	},
}

var defaultCatalog = MustCatalog(DefaultRules...)

// Default returns the catalog built from DefaultRules.
func Default() *Catalog { return defaultCatalog }
