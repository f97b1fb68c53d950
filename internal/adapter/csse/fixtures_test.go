package csse

import "time"

const reportBody = "Province/State,Country/Region,Last Update,Confirmed,Deaths,Recovered\n,Italy,2020-03-01T10:00:00,1694,34,83\n"

var march1 = time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
